package repository

import (
	"context"

	"github.com/fastygo/taskhub/domain"
)

type ActivityFilter struct {
	EntityKind string
	EntityID   string
	Limit      int
}

type ActivityRepository interface {
	// Append stores an event; appending an id twice is a no-op.
	Append(ctx context.Context, event domain.Event) error
	List(ctx context.Context, filter ActivityFilter) ([]domain.Event, error)
}
