package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskhub/api/handler"
	"github.com/fastygo/taskhub/internal/config"
	"github.com/fastygo/taskhub/internal/infrastructure/broker"
	"github.com/fastygo/taskhub/internal/infrastructure/monitor"
	"github.com/fastygo/taskhub/internal/infrastructure/outbox"
	redisInfra "github.com/fastygo/taskhub/internal/infrastructure/redis"
	"github.com/fastygo/taskhub/internal/middleware"
	"github.com/fastygo/taskhub/internal/router"
	"github.com/fastygo/taskhub/internal/security"
	"github.com/fastygo/taskhub/internal/services"
	"github.com/fastygo/taskhub/internal/services/lifecycle"
	"github.com/fastygo/taskhub/pkg/httpcontext"
	"github.com/fastygo/taskhub/repository"
	redisRepo "github.com/fastygo/taskhub/repository/redis"
	activityUC "github.com/fastygo/taskhub/usecase/activity"
	authUC "github.com/fastygo/taskhub/usecase/auth"
	projectUC "github.com/fastygo/taskhub/usecase/project"
	taskUC "github.com/fastygo/taskhub/usecase/task"
	userUC "github.com/fastygo/taskhub/usecase/user"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, log)
	appCtx, cancel := manager.Listen(cmd.Context())
	defer cancel()

	if err := serve(appCtx, cfg, log, manager); err != nil {
		log.Error("server stopped", zap.Error(err))
		if shutdownErr := manager.Shutdown(context.Background()); shutdownErr != nil {
			log.Error("graceful shutdown error", zap.Error(shutdownErr))
		}
		return err
	}
	if err := manager.Shutdown(context.Background()); err != nil {
		log.Error("graceful shutdown error", zap.Error(err))
		return err
	}
	return nil
}

// serve wires every component, registers it with manager and blocks until
// ctx ends or the listener fails.
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, manager *lifecycle.Manager) error {
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	manager.Closer("storage", st.close)

	checks := []monitor.Check{{Name: monitor.ComponentStorage, Critical: true, Ping: st.ping}}

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	var sessions repository.SessionRepository
	if redisClient != nil {
		manager.Closer("redis", redisClient.Close)
		sessions = redisRepo.NewSessionRepository(redisClient, cfg.JWT.TTL)
		checks = append(checks, monitor.Check{
			Name:     monitor.ComponentRedis,
			Critical: true,
			Ping:     func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		log.Warn("REDIS_URL not set, sessions cannot be revoked before they expire")
	}

	var publisher services.EventPublisher
	if cfg.NATS.URL != "" {
		nats, err := broker.Connect(cfg.NATS.URL, cfg.AppName, log)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		manager.Closer("nats", nats.Close)
		publisher = nats
		checks = append(checks, monitor.Check{Name: monitor.ComponentNATS, Ping: nats.Ping})
	}

	box, err := outbox.Open(cfg.Outbox.Path, "activity")
	if err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	manager.Closer("outbox", box.Close)

	mon := monitor.New(checks, box, cfg.Monitor.Interval, log)
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	processor := services.NewOutboxProcessor(box, mon, st.store.Activity, publisher, log, services.ProcessorConfig{
		Interval:   cfg.Outbox.SyncInterval,
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetry,
		Retention:  cfg.Outbox.Retention,
	})
	processor.Start()
	manager.Register("outbox_processor", func(ctx context.Context) error {
		processor.Stop(ctx)
		return nil
	})
	recorder := services.NewOutboxBridge(processor, cfg.Context.RequestTimeout, log)

	tokens, err := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return err
	}
	hasher := security.NewHasher(cfg.Security.BcryptCost)

	store := st.store
	authUseCase := authUC.New(store.Users, sessions, store.Tx, tokens, hasher, recorder, log)
	projectUseCase := projectUC.New(store.Projects, store.Tasks, store.Users, store.Tx, recorder, log)
	taskUseCase := taskUC.New(store.Tasks, store.Projects, store.Users, store.Tx, recorder, log)
	userUseCase := userUC.New(store.Users, store.Projects, store.Tx, recorder, log)
	activityUseCase := activityUC.New(store.Activity)

	adapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Auth:     apiHandler.NewAuthHandler(authUseCase, userUseCase, adapter, log),
		Project:  apiHandler.NewProjectHandler(projectUseCase, adapter, log),
		Task:     apiHandler.NewTaskHandler(taskUseCase, adapter, log),
		User:     apiHandler.NewUserHandler(userUseCase, adapter, log),
		Activity: apiHandler.NewActivityHandler(activityUseCase, adapter, log),
		Health:   apiHandler.NewHealthHandler(mon, adapter, log),
	}
	r := router.New(handlers,
		middleware.JWTAuth(authUseCase, adapter, log),
		middleware.OptionalAuth(authUseCase, adapter, log),
	)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("env", cfg.Environment))
		errCh <- server.ListenAndServe(cfg.Address())
	}()
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
