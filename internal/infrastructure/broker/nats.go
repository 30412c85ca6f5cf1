// Package broker publishes activity events on NATS.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
)

// SubjectPrefix is prepended to the event name to build the subject.
const SubjectPrefix = "taskhub."

var ErrNotConnected = errors.New("broker: not connected")

const flushTimeout = 2 * time.Second

// Publisher sends events to NATS. A nil Publisher drops everything, which is
// how publishing is disabled.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials url. The connection keeps retrying in the background so the
// server can start before NATS is reachable.
func Connect(url, name string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("nats publisher ready", zap.String("url", url))
	return &Publisher{conn: conn, logger: logger}, nil
}

// Subject returns the subject an event name is published on.
func Subject(eventName string) string {
	return SubjectPrefix + eventName
}

// Publish sends event as JSON and waits for the server to acknowledge the flush.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(Subject(event.Name), data); err != nil {
		return err
	}
	return p.flush(ctx)
}

// Ping reports whether the server answers a flush.
func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil || p.conn == nil {
		return ErrNotConnected
	}
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}
	return p.flush(ctx)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

func (p *Publisher) flush(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	return p.conn.FlushWithContext(ctx)
}
