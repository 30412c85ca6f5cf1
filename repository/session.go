package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskhub/domain"
)

type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	// Extend moves the session expiry to expiresAt.
	Extend(ctx context.Context, id string, expiresAt time.Time) error
}
