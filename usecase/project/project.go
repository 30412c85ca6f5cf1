package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/domain/policy"
	"github.com/fastygo/taskhub/pkg/logger"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/usecase"
)

type CreateInput struct {
	Title         string
	Description   string
	AssignedUsers []string
}

// Patch is a project update. A non-nil AssignedUsers replaces the member set.
type Patch struct {
	Title         *string
	Description   *string
	AssignedUsers *[]string
}

type UseCase struct {
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	users    repository.UserRepository
	tx       repository.Transactor
	events   usecase.EventRecorder
	logger   *zap.Logger
}

func New(
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	users repository.UserRepository,
	tx repository.Transactor,
	events usecase.EventRecorder,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		projects: projects,
		tasks:    tasks,
		users:    users,
		tx:       tx,
		events:   events,
		logger:   logger,
	}
}

func (uc *UseCase) Create(ctx context.Context, p domain.Principal, in CreateInput) (*domain.Project, error) {
	if err := policy.Authorize(p, policy.ProjectCreate, policy.Target{}); err != nil {
		return nil, err
	}
	title, err := usecase.NormalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}

	project := &domain.Project{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   in.Description,
		CreatedBy:     p.UserID,
		AssignedUsers: domain.UniqueIDs(in.AssignedUsers),
	}
	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := uc.requireUsers(ctx, project.AssignedUsers); err != nil {
			return err
		}
		return uc.projects.Create(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
		domain.EventProjectCreated, domain.EntityProject, project.ID, p.UserID,
		map[string]interface{}{"title": project.Title, "assigned_users": project.AssignedUsers},
	))
	return project, nil
}

// List returns every project to admins and the created or assigned ones to everybody else.
func (uc *UseCase) List(ctx context.Context, p domain.Principal) ([]domain.Project, error) {
	if !p.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	filter := repository.ProjectFilter{}
	if !p.IsAdmin() {
		filter.VisibleTo = p.UserID
	}
	projects, err := uc.projects.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (uc *UseCase) Get(ctx context.Context, p domain.Principal, id string) (*domain.Project, error) {
	return uc.load(ctx, p, policy.ProjectRead, id)
}

func (uc *UseCase) Update(ctx context.Context, p domain.Principal, id string, patch Patch) (*domain.Project, error) {
	var project *domain.Project
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if project, err = uc.load(ctx, p, policy.ProjectUpdate, id); err != nil {
			return err
		}
		if patch.Title != nil {
			title, err := usecase.NormalizeTitle(*patch.Title)
			if err != nil {
				return err
			}
			project.Title = title
		}
		if patch.Description != nil {
			project.Description = *patch.Description
		}
		if err := uc.projects.Update(ctx, project); err != nil {
			return err
		}
		if patch.AssignedUsers == nil {
			return nil
		}
		members := domain.UniqueIDs(*patch.AssignedUsers)
		if err := uc.requireUsers(ctx, members); err != nil {
			return err
		}
		if err := uc.projects.ReplaceMembers(ctx, project.ID, members); err != nil {
			return err
		}
		project.AssignedUsers = members
		return nil
	})
	if err != nil {
		return nil, err
	}

	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
		domain.EventProjectUpdated, domain.EntityProject, project.ID, p.UserID,
		map[string]interface{}{"title": project.Title, "assigned_users": project.AssignedUsers},
	))
	return project, nil
}

// AssignUsers adds userIDs to the project's members. Ids that are already
// members are ignored; nobody is ever removed.
func (uc *UseCase) AssignUsers(ctx context.Context, p domain.Principal, id string, userIDs []string) (*domain.Project, error) {
	ids := domain.UniqueIDs(userIDs)

	var (
		project *domain.Project
		added   []string
	)
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if project, err = uc.load(ctx, p, policy.ProjectAssign, id); err != nil {
			return err
		}
		if len(ids) == 0 {
			return domain.Invalid("user_ids is required")
		}
		if err := uc.requireUsers(ctx, ids); err != nil {
			return err
		}
		added = project.AssignUsers(ids)
		return uc.projects.AddMembers(ctx, project.ID, added)
	})
	if err != nil {
		return nil, err
	}

	if len(added) > 0 {
		usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
			domain.EventProjectUsersAssigned, domain.EntityProject, project.ID, p.UserID,
			map[string]interface{}{"added": added},
		))
	}
	return project, nil
}

// Delete removes the project and all of its tasks in one transaction. Tasks
// are purged first; the store refuses to drop a project that still has tasks.
func (uc *UseCase) Delete(ctx context.Context, p domain.Principal, id string) error {
	var purged int64
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, err := uc.load(ctx, p, policy.ProjectDelete, id)
		if err != nil {
			return err
		}
		if purged, err = uc.purge(ctx, project.ID); err != nil {
			return err
		}
		if err := uc.projects.Delete(ctx, project.ID); err != nil {
			if errors.Is(err, domain.ErrProjectNotFound) {
				return err
			}
			return domain.InconsistentCascade(project.ID, err)
		}
		return uc.verifyPurged(ctx, project.ID)
	})
	if err != nil {
		uc.logCascadeFailure(ctx, id, err)
		return err
	}

	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
		domain.EventProjectDeleted, domain.EntityProject, id, p.UserID,
		map[string]int64{"tasks_deleted": purged},
	))
	return nil
}

// DeleteTasks removes every task of the project and returns how many were deleted.
func (uc *UseCase) DeleteTasks(ctx context.Context, p domain.Principal, id string) (int64, error) {
	var purged int64
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, err := uc.load(ctx, p, policy.ProjectPurgeTasks, id)
		if err != nil {
			return err
		}
		if purged, err = uc.purge(ctx, project.ID); err != nil {
			return err
		}
		return uc.verifyPurged(ctx, project.ID)
	})
	if err != nil {
		uc.logCascadeFailure(ctx, id, err)
		return 0, err
	}

	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
		domain.EventProjectTasksPurged, domain.EntityProject, id, p.UserID,
		map[string]int64{"tasks_deleted": purged},
	))
	return purged, nil
}

// load fetches the project and authorizes action on it. A missing project is
// reported as not found, after the caller has been authenticated.
func (uc *UseCase) load(ctx context.Context, p domain.Principal, action policy.Action, id string) (*domain.Project, error) {
	project, err := uc.projects.GetByID(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
		return nil, err
	}
	if err := policy.Authorize(p, action, policy.Target{Project: project}); err != nil {
		return nil, err
	}
	if project == nil {
		return nil, domain.ErrProjectNotFound
	}
	return project, nil
}

func (uc *UseCase) purge(ctx context.Context, projectID string) (int64, error) {
	n, err := uc.tasks.DeleteByProject(ctx, projectID)
	if err != nil {
		return 0, domain.InconsistentCascade(projectID, err)
	}
	return n, nil
}

func (uc *UseCase) verifyPurged(ctx context.Context, projectID string) error {
	remaining, err := uc.tasks.CountByProject(ctx, projectID)
	if err != nil {
		return domain.InconsistentCascade(projectID, err)
	}
	if remaining != 0 {
		return domain.InconsistentCascade(projectID, fmt.Errorf("%d tasks remain", remaining))
	}
	return nil
}

func (uc *UseCase) requireUsers(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := uc.users.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (uc *UseCase) logCascadeFailure(ctx context.Context, projectID string, err error) {
	if domain.IsDomainError(err, domain.ErrCodeInconsistentCascade) {
		logger.WithRequestID(ctx, uc.logger).Error("project cascade aborted",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}
}
