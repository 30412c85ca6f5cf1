package activity

import (
	"context"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/domain/policy"
	"github.com/fastygo/taskhub/repository"
)

type UseCase struct {
	events repository.ActivityRepository
}

func New(events repository.ActivityRepository) *UseCase {
	return &UseCase{events: events}
}

// List returns the most recent activity events, newest first.
func (uc *UseCase) List(ctx context.Context, p domain.Principal, filter repository.ActivityFilter) ([]domain.Event, error) {
	if err := policy.Authorize(p, policy.ActivityList, policy.Target{}); err != nil {
		return nil, err
	}
	events, err := uc.events.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
