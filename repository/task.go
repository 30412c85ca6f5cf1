package repository

import (
	"context"

	"github.com/fastygo/taskhub/domain"
)

type TaskFilter struct {
	AssigneeID string
	ProjectID  string
	Status     domain.TaskStatus
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error

	DeleteByProject(ctx context.Context, projectID string) (int64, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
}
