package repository

import (
	"context"

	"github.com/fastygo/taskhub/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Count(ctx context.Context) (int, error)
	// LockRegistration serializes registrations for the rest of the current
	// transaction so two first users cannot both become admin.
	LockRegistration(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
}
