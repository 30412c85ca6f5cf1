package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/domain/policy"
	"github.com/fastygo/taskhub/internal/security"
	"github.com/fastygo/taskhub/pkg/logger"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/usecase"
)

// RegisterInput is a registration request; Role may be empty.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// RegisterResult carries the created user. Token is only set for self-registration.
type RegisterResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// LoginResult is an authenticated identity with a fresh token.
type LoginResult struct {
	Principal domain.Principal
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tx       repository.Transactor
	tokens   *security.TokenManager
	hasher   security.Hasher
	events   usecase.EventRecorder
	logger   *zap.Logger

	// Now is the clock sessions are checked against.
	Now func() time.Time
}

// New wires the identity use case. sessions and events may be nil: without a
// session store tokens cannot be revoked before they expire.
func New(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tx repository.Transactor,
	tokens *security.TokenManager,
	hasher security.Hasher,
	events usecase.EventRecorder,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		tx:       tx,
		tokens:   tokens,
		hasher:   hasher,
		events:   events,
		logger:   logger,
		Now:      time.Now,
	}
}

// Register creates a user. The first user of an empty store becomes admin
// whatever role was requested; afterwards an admin role needs an admin caller.
// caller is nil for self-registration, which is the only case that returns a token.
func (uc *UseCase) Register(ctx context.Context, in RegisterInput, caller *domain.Principal) (*RegisterResult, error) {
	name, err := usecase.NormalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	email, err := usecase.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := usecase.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	hash, err := uc.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var principal domain.Principal
	if caller != nil {
		principal = *caller
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}

	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := uc.users.LockRegistration(ctx); err != nil {
			return err
		}
		if _, err := uc.users.GetByEmail(ctx, email); err == nil {
			return domain.ErrDuplicateUser
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}

		count, err := uc.users.Count(ctx)
		if err != nil {
			return err
		}
		if count == 0 || user.Role == domain.RoleAdmin {
			if err := policy.Authorize(principal, policy.UserCreateAdmin, policy.Target{EmptyStore: count == 0}); err != nil {
				return err
			}
			user.Role = domain.RoleAdmin
		}
		return uc.users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.WithRequestID(ctx, uc.logger).Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
		domain.EventUserRegistered, domain.EntityUser, user.ID, principal.UserID,
		map[string]string{"email": user.Email, "role": string(user.Role)},
	))

	result := &RegisterResult{User: user}
	if caller == nil {
		token, expiresAt, err := uc.startSession(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		result.Token = token
		result.ExpiresAt = expiresAt
	}
	return result, nil
}

// Login verifies credentials. Unknown email and wrong password fail the same way.
func (uc *UseCase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrBadCredentials
		}
		return nil, err
	}
	if !uc.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrBadCredentials
	}

	token, expiresAt, err := uc.startSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Principal: user.Principal(),
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve turns a bearer token into the caller's principal. The role is read
// from storage on every call so demotions and deletions apply immediately.
func (uc *UseCase) Resolve(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := uc.tokens.Parse(token)
	if err != nil {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if err := uc.checkSession(ctx, claims); err != nil {
		return domain.Principal{}, err
	}

	user, err := uc.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			logger.WithRequestID(ctx, uc.logger).Error("resolve principal", zap.Error(err))
		}
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return user.Principal(), nil
}

// Logout revokes the session behind token.
func (uc *UseCase) Logout(ctx context.Context, token string) error {
	claims, err := uc.tokens.Parse(token)
	if err != nil {
		return domain.ErrUnauthorized
	}
	if uc.sessions == nil || claims.SessionID == "" {
		return nil
	}
	return uc.sessions.Delete(ctx, claims.SessionID)
}

// Refresh extends the session behind token and issues a new token for it.
func (uc *UseCase) Refresh(ctx context.Context, token string) (*LoginResult, error) {
	principal, err := uc.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	claims, err := uc.tokens.Parse(token)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	fresh, expiresAt, err := uc.tokens.Issue(principal.UserID, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if uc.sessions != nil && claims.SessionID != "" {
		if err := uc.sessions.Extend(ctx, claims.SessionID, expiresAt); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, domain.ErrUnauthorized
			}
			return nil, err
		}
	}
	return &LoginResult{Principal: principal, Token: fresh, ExpiresAt: expiresAt}, nil
}

func (uc *UseCase) startSession(ctx context.Context, userID string) (string, time.Time, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := uc.tokens.Issue(userID, sessionID)
	if err != nil {
		return "", time.Time{}, err
	}
	if uc.sessions != nil {
		session := &domain.Session{
			ID:        sessionID,
			UserID:    userID,
			CreatedAt: uc.Now().UTC(),
			ExpiresAt: expiresAt,
		}
		if err := uc.sessions.Save(ctx, session); err != nil {
			return "", time.Time{}, err
		}
	}
	return token, expiresAt, nil
}

func (uc *UseCase) checkSession(ctx context.Context, claims *security.Claims) error {
	if uc.sessions == nil {
		return nil
	}
	if claims.SessionID == "" {
		return domain.ErrUnauthorized
	}
	session, err := uc.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			logger.WithRequestID(ctx, uc.logger).Warn("session lookup failed", zap.Error(err))
		}
		return domain.ErrUnauthorized
	}
	if session.UserID != claims.Subject || session.IsExpired(uc.Now()) {
		return domain.ErrUnauthorized
	}
	return nil
}
