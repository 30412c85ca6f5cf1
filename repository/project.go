package repository

import (
	"context"

	"github.com/fastygo/taskhub/domain"
)

type ProjectFilter struct {
	// VisibleTo limits the result to projects created by or assigned to this
	// user. Empty means every project.
	VisibleTo string
}

type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)
	Create(ctx context.Context, project *domain.Project) error
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id string) error

	// AddMembers inserts memberships, ignoring ones that already exist.
	AddMembers(ctx context.Context, projectID string, userIDs []string) error
	ReplaceMembers(ctx context.Context, projectID string, userIDs []string) error
	// RemoveMemberEverywhere detaches a user from every project and returns
	// the number of memberships removed.
	RemoveMemberEverywhere(ctx context.Context, userID string) (int64, error)
}
