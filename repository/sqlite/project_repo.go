package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

const projectColumns = `p.id, p.title, p.description, p.created_by, p.created_at, p.updated_at`

type projectRepository struct {
	db *sql.DB
}

// NewProjectRepository returns a SQLite-backed ProjectRepository.
func NewProjectRepository(db *sql.DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	project, err := scanProject(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id))
	if err != nil {
		return nil, err
	}
	members, err := r.members(ctx, []string{project.ID})
	if err != nil {
		return nil, err
	}
	project.AssignedUsers = membersOf(members, project.ID)
	return project, nil
}

func (r *projectRepository) List(ctx context.Context, filter repository.ProjectFilter) ([]domain.Project, error) {
	const query = `
	SELECT ` + projectColumns + `
	FROM projects p
	WHERE (?1 = '' OR p.created_by = ?1 OR EXISTS (
		SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?1
	))
	ORDER BY p.created_at DESC, p.id ASC
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, filter.VisibleTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		projects []domain.Project
		ids      []string
	)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
		ids = append(ids, project.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	members, err := r.members(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].AssignedUsers = membersOf(members, projects[i].ID)
	}
	return projects, nil
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	if project == nil || project.ID == "" {
		return domain.ErrInvalidPayload
	}
	project.CreatedAt = stamp(project.CreatedAt)
	project.UpdatedAt = project.CreatedAt

	if _, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO projects (id, title, description, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Title, project.Description, project.CreatedBy,
		formatTime(project.CreatedAt), formatTime(project.UpdatedAt),
	); err != nil {
		return err
	}
	project.AssignedUsers = domain.UniqueIDs(project.AssignedUsers)
	return r.AddMembers(ctx, project.ID, project.AssignedUsers)
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	if project == nil {
		return domain.ErrInvalidPayload
	}
	updatedAt := time.Now().UTC()
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE projects SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		project.Title, project.Description, formatTime(updatedAt), project.ID,
	)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return domain.ErrProjectNotFound
	}
	project.UpdatedAt = updatedAt
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *projectRepository) AddMembers(ctx context.Context, projectID string, userIDs []string) error {
	q := conn(ctx, r.db)
	for _, userID := range domain.UniqueIDs(userIDs) {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO project_members (project_id, user_id) VALUES (?, ?) ON CONFLICT (project_id, user_id) DO NOTHING`,
			projectID, userID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *projectRepository) ReplaceMembers(ctx context.Context, projectID string, userIDs []string) error {
	if _, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ?`, projectID); err != nil {
		return err
	}
	return r.AddMembers(ctx, projectID, userIDs)
}

func (r *projectRepository) RemoveMemberEverywhere(ctx context.Context, userID string) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM project_members WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// members loads the member lists of the given projects in insertion order.
func (r *projectRepository) members(ctx context.Context, projectIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(projectIDs)), ",")
	args := make([]any, len(projectIDs))
	for i, id := range projectIDs {
		args[i] = id
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT project_id, user_id FROM project_members WHERE project_id IN (`+placeholders+`) ORDER BY rowid`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var projectID, userID string
		if err := rows.Scan(&projectID, &userID); err != nil {
			return nil, err
		}
		out[projectID] = append(out[projectID], userID)
	}
	return out, rows.Err()
}

func membersOf(members map[string][]string, projectID string) []string {
	if ids := members[projectID]; ids != nil {
		return ids
	}
	return []string{}
}

func scanProject(row scanner) (*domain.Project, error) {
	var (
		project              domain.Project
		createdAt, updatedAt string
	)
	if err := row.Scan(&project.ID, &project.Title, &project.Description, &project.CreatedBy, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	var err error
	if project.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if project.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &project, nil
}
