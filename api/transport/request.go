package transport

import (
	"strings"
	"time"

	"github.com/fastygo/taskhub/domain"
	projectUC "github.com/fastygo/taskhub/usecase/project"
	taskUC "github.com/fastygo/taskhub/usecase/task"
	userUC "github.com/fastygo/taskhub/usecase/user"
)

const dateLayout = "2006-01-02"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProjectRequest serves both create and update; absent fields stay nil.
type ProjectRequest struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	AssignedUsers *[]string `json:"assigned_users"`
}

func (r ProjectRequest) CreateInput() projectUC.CreateInput {
	in := projectUC.CreateInput{}
	if r.Title != nil {
		in.Title = *r.Title
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	if r.AssignedUsers != nil {
		in.AssignedUsers = *r.AssignedUsers
	}
	return in
}

func (r ProjectRequest) Patch() projectUC.Patch {
	return projectUC.Patch{Title: r.Title, Description: r.Description, AssignedUsers: r.AssignedUsers}
}

type AssignUsersRequest struct {
	UserIDs []string `json:"user_ids"`
}

type TaskRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Status         *string `json:"status"`
	Deadline       *string `json:"deadline"`
	ProjectID      *string `json:"project_id"`
	AssignedUserID *string `json:"assigned_user_id"`
}

func (r TaskRequest) CreateInput() (taskUC.CreateInput, error) {
	var in taskUC.CreateInput
	if r.Title != nil {
		in.Title = *r.Title
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	if r.ProjectID != nil {
		in.ProjectID = strings.TrimSpace(*r.ProjectID)
	}
	if r.AssignedUserID != nil {
		in.AssignedUserID = strings.TrimSpace(*r.AssignedUserID)
	}
	if r.Status != nil && strings.TrimSpace(*r.Status) != "" {
		status, err := domain.ParseTaskStatus(*r.Status)
		if err != nil {
			return in, err
		}
		in.Status = status
	}
	if r.Deadline == nil {
		return in, domain.Invalid("deadline is required")
	}
	deadline, err := ParseDeadline(*r.Deadline)
	if err != nil {
		return in, err
	}
	in.Deadline = deadline
	return in, nil
}

// Patch parses the fields principal may edit: admins everything but the
// status, everyone else only the status. Other fields are dropped unparsed.
func (r TaskRequest) Patch(principal domain.Principal) (domain.TaskPatch, error) {
	if principal.IsAdmin() {
		r.Status = nil
	} else {
		r = TaskRequest{Status: r.Status}
	}
	patch := domain.TaskPatch{
		Title:          r.Title,
		Description:    r.Description,
		ProjectID:      trimmed(r.ProjectID),
		AssignedUserID: trimmed(r.AssignedUserID),
	}
	if r.Status != nil {
		status, err := domain.ParseTaskStatus(*r.Status)
		if err != nil {
			return patch, err
		}
		patch.Status = &status
	}
	if r.Deadline != nil {
		deadline, err := ParseDeadline(*r.Deadline)
		if err != nil {
			return patch, err
		}
		patch.Deadline = &deadline
	}
	return patch, nil
}

type ReopenRequest struct {
	Deadline *string `json:"deadline"`
}

// DeadlineValue returns nil when no deadline was sent.
func (r ReopenRequest) DeadlineValue() (*time.Time, error) {
	if r.Deadline == nil || strings.TrimSpace(*r.Deadline) == "" {
		return nil, nil
	}
	deadline, err := ParseDeadline(*r.Deadline)
	if err != nil {
		return nil, err
	}
	return &deadline, nil
}

type UserUpdateRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

func (r UserUpdateRequest) Patch() userUC.Patch {
	return userUC.Patch{Name: r.Name, Email: r.Email, Role: r.Role}
}

// ParseDeadline accepts RFC3339 timestamps and bare dates. A bare date
// means the last second of that day in UTC.
func ParseDeadline(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, domain.Invalid("deadline is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse(dateLayout, value); err == nil {
		return d.Add(24*time.Hour - time.Second), nil
	}
	return time.Time{}, domain.Invalid("deadline must be RFC3339 or YYYY-MM-DD")
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
