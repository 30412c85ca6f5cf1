package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/domain/policy"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/usecase"
)

// CreateInput describes a new task. An empty Status means To Do.
type CreateInput struct {
	Title          string
	Description    string
	Status         domain.TaskStatus
	Deadline       time.Time
	ProjectID      string
	AssignedUserID string
}

// ListFilter narrows a scoped task listing.
type ListFilter struct {
	ProjectID string
	Status    domain.TaskStatus
}

type UseCase struct {
	tasks    repository.TaskRepository
	projects repository.ProjectRepository
	users    repository.UserRepository
	tx       repository.Transactor
	events   usecase.EventRecorder
	logger   *zap.Logger

	// Now is the clock deadlines are checked against.
	Now func() time.Time
}

func New(
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	users repository.UserRepository,
	tx repository.Transactor,
	events usecase.EventRecorder,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		projects: projects,
		users:    users,
		tx:       tx,
		events:   events,
		logger:   logger,
		Now:      time.Now,
	}
}

func (uc *UseCase) Create(ctx context.Context, p domain.Principal, in CreateInput) (*domain.Task, error) {
	if err := policy.Authorize(p, policy.TaskCreate, policy.Target{}); err != nil {
		return nil, err
	}
	title, err := usecase.NormalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateDeadline(in.Deadline, uc.Now()); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = domain.StatusToDo
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if in.ProjectID == "" {
		return nil, domain.Invalid("project_id is required")
	}
	if in.AssignedUserID == "" {
		return nil, domain.Invalid("assigned_user_id is required")
	}

	task := &domain.Task{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    in.Description,
		Status:         status,
		Deadline:       in.Deadline.UTC(),
		ProjectID:      in.ProjectID,
		AssignedUserID: in.AssignedUserID,
	}
	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := uc.requireReferences(ctx, &task.ProjectID, &task.AssignedUserID); err != nil {
			return err
		}
		return uc.tasks.Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	uc.emit(ctx, domain.EventTaskCreated, task, p, map[string]interface{}{
		"project_id":       task.ProjectID,
		"assigned_user_id": task.AssignedUserID,
		"status":           task.Status,
	})
	return task, nil
}

// List returns every task to admins and only the caller's assigned tasks to everybody else.
func (uc *UseCase) List(ctx context.Context, p domain.Principal, filter ListFilter) ([]domain.Task, error) {
	if !p.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	query := repository.TaskFilter{ProjectID: filter.ProjectID, Status: filter.Status}
	if !p.IsAdmin() {
		query.AssigneeID = p.UserID
	}
	tasks, err := uc.tasks.List(ctx, query)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (uc *UseCase) Get(ctx context.Context, p domain.Principal, id string) (*domain.Task, error) {
	return uc.load(ctx, p, policy.TaskRead, id)
}

// Update applies patch within the caller's rights: admins edit everything but
// the status, assignees only the status. Fields outside those rights are dropped.
func (uc *UseCase) Update(ctx context.Context, p domain.Principal, id string, patch domain.TaskPatch) (*domain.Task, error) {
	var (
		task    *domain.Task
		changed bool
	)
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if task, err = uc.load(ctx, p, policy.TaskUpdate, id); err != nil {
			return err
		}
		allowed := patch.RestrictFor(p)
		if allowed.IsEmpty() {
			return nil
		}
		if err := uc.requireReferences(ctx, allowed.ProjectID, allowed.AssignedUserID); err != nil {
			return err
		}
		if err := task.Apply(allowed, uc.Now()); err != nil {
			return err
		}
		changed = true
		return uc.tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		uc.emit(ctx, domain.EventTaskUpdated, task, p, map[string]interface{}{
			"status":           task.Status,
			"assigned_user_id": task.AssignedUserID,
			"deadline":         task.Deadline,
		})
	}
	return task, nil
}

// Submit marks the task Done. Only the assignee may submit; submitting a Done task changes nothing.
func (uc *UseCase) Submit(ctx context.Context, p domain.Principal, id string) (*domain.Task, error) {
	var (
		task    *domain.Task
		changed bool
	)
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if task, err = uc.load(ctx, p, policy.TaskSubmit, id); err != nil {
			return err
		}
		if task.IsCompleted() {
			return nil
		}
		task.Submit()
		changed = true
		return uc.tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		uc.emit(ctx, domain.EventTaskSubmitted, task, p, nil)
	}
	return task, nil
}

// Reopen moves a Done task back to In Progress. A nil deadline keeps the
// stored one, even when it has passed.
func (uc *UseCase) Reopen(ctx context.Context, p domain.Principal, id string, deadline *time.Time) (*domain.Task, error) {
	var task *domain.Task
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if task, err = uc.load(ctx, p, policy.TaskReopen, id); err != nil {
			return err
		}
		if deadline != nil {
			utc := deadline.UTC()
			deadline = &utc
		}
		if err := task.Reopen(deadline, uc.Now()); err != nil {
			return err
		}
		return uc.tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	uc.emit(ctx, domain.EventTaskReopened, task, p, map[string]interface{}{"deadline": task.Deadline})
	return task, nil
}

func (uc *UseCase) Delete(ctx context.Context, p domain.Principal, id string) error {
	var task *domain.Task
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if task, err = uc.load(ctx, p, policy.TaskDelete, id); err != nil {
			return err
		}
		return uc.tasks.Delete(ctx, task.ID)
	})
	if err != nil {
		return err
	}

	uc.emit(ctx, domain.EventTaskDeleted, task, p, map[string]string{"project_id": task.ProjectID})
	return nil
}

func (uc *UseCase) load(ctx context.Context, p domain.Principal, action policy.Action, id string) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, err
	}
	if err := policy.Authorize(p, action, policy.Target{Task: task}); err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// requireReferences checks that the referenced project and user exist; nil ids are skipped.
func (uc *UseCase) requireReferences(ctx context.Context, projectID, userID *string) error {
	if projectID != nil {
		if *projectID == "" {
			return domain.Invalid("project_id is required")
		}
		if _, err := uc.projects.GetByID(ctx, *projectID); err != nil {
			return err
		}
	}
	if userID != nil {
		if *userID == "" {
			return domain.Invalid("assigned_user_id is required")
		}
		if _, err := uc.users.GetByID(ctx, *userID); err != nil {
			return err
		}
	}
	return nil
}

func (uc *UseCase) emit(ctx context.Context, name string, task *domain.Task, p domain.Principal, payload interface{}) {
	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(name, domain.EntityTask, task.ID, p.UserID, payload))
}
