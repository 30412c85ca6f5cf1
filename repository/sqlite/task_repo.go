package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

const taskColumns = `id, title, description, status, deadline, project_id, assigned_user_id, created_at, updated_at`

type taskRepository struct {
	db *sql.DB
}

// NewTaskRepository returns a SQLite-backed TaskRepository.
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return scanTask(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE (?1 = '' OR assigned_user_id = ?1)
	  AND (?2 = '' OR project_id = ?2)
	  AND (?3 = '' OR status = ?3)
	ORDER BY deadline ASC, created_at ASC
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, filter.AssigneeID, filter.ProjectID, string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = stamp(task.CreatedAt)
	task.UpdatedAt = task.CreatedAt

	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, string(task.Status), formatTime(task.Deadline),
		task.ProjectID, task.AssignedUserID, formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
	)
	return err
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	updatedAt := time.Now().UTC()

	const query = `
	UPDATE tasks
	SET title = ?, description = ?, status = ?, deadline = ?,
		project_id = ?, assigned_user_id = ?, updated_at = ?
	WHERE id = ?
	`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		task.Title, task.Description, string(task.Status), formatTime(task.Deadline),
		task.ProjectID, task.AssignedUserID, formatTime(updatedAt), task.ID,
	)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return domain.ErrTaskNotFound
	}
	task.UpdatedAt = updatedAt
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (r *taskRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE project_id = ?`, projectID).Scan(&count)
	return count, err
}

func scanTask(row scanner) (*domain.Task, error) {
	var (
		task                           domain.Task
		status                         string
		deadline, createdAt, updatedAt string
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&deadline,
		&task.ProjectID,
		&task.AssignedUserID,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	task.Status = domain.TaskStatus(status)

	var err error
	if task.Deadline, err = parseTime(deadline); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
