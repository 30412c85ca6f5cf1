package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

const projectSelect = `
	SELECT p.id, p.title, p.description, p.created_by, p.created_at, p.updated_at,
		ARRAY(
			SELECT m.user_id FROM project_members m
			WHERE m.project_id = p.id
			ORDER BY m.added_at, m.user_id
		) AS members
	FROM projects p
	`

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository returns a Postgres-backed ProjectRepository.
func NewProjectRepository(pool *pgxpool.Pool) repository.ProjectRepository {
	return &projectRepository{pool: pool}
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, projectSelect+`WHERE p.id = $1`, id)
	return scanProject(row)
}

func (r *projectRepository) List(ctx context.Context, filter repository.ProjectFilter) ([]domain.Project, error) {
	const where = `
	WHERE ($1 = '' OR p.created_by = $1 OR EXISTS (
		SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $1
	))
	ORDER BY p.created_at DESC
	`
	rows, err := conn(ctx, r.pool).Query(ctx, projectSelect+where, filter.VisibleTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	if project == nil || project.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO projects (id, title, description, created_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), NOW())
	RETURNING created_at, updated_at
	`
	if err := conn(ctx, r.pool).QueryRow(ctx, query,
		project.ID,
		project.Title,
		project.Description,
		project.CreatedBy,
		nullTime(project.CreatedAt),
	).Scan(&project.CreatedAt, &project.UpdatedAt); err != nil {
		return err
	}
	project.AssignedUsers = domain.UniqueIDs(project.AssignedUsers)
	return r.AddMembers(ctx, project.ID, project.AssignedUsers)
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	if project == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE projects
	SET title = $2,
		description = $3,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`
	if err := conn(ctx, r.pool).QueryRow(ctx, query, project.ID, project.Title, project.Description).Scan(&project.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrProjectNotFound
		}
		return err
	}
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *projectRepository) AddMembers(ctx context.Context, projectID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	const query = `
	INSERT INTO project_members (project_id, user_id, added_at)
	SELECT $1, u.id, NOW() + (u.ord * INTERVAL '1 microsecond')
	FROM unnest($2::text[]) WITH ORDINALITY AS u(id, ord)
	ON CONFLICT (project_id, user_id) DO NOTHING
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query, projectID, domain.UniqueIDs(userIDs))
	return err
}

func (r *projectRepository) ReplaceMembers(ctx context.Context, projectID string, userIDs []string) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM project_members WHERE project_id = $1`, projectID); err != nil {
		return err
	}
	return r.AddMembers(ctx, projectID, userIDs)
}

func (r *projectRepository) RemoveMemberEverywhere(ctx context.Context, userID string) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM project_members WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanProject(row scanner) (*domain.Project, error) {
	var project domain.Project
	var members []string
	if err := row.Scan(
		&project.ID,
		&project.Title,
		&project.Description,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
		&members,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	if members == nil {
		members = []string{}
	}
	project.AssignedUsers = members
	return &project, nil
}
