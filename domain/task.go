package domain

import (
	"strings"
	"time"
)

// TaskStatus is a state of the task lifecycle.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "To Do"
	StatusInProgress TaskStatus = "In Progress"
	StatusDone       TaskStatus = "Done"
)

// ParseTaskStatus accepts the canonical names and their compact forms ("todo", "in_progress", "InProgress").
func ParseTaskStatus(value string) (TaskStatus, error) {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(value))
	switch key {
	case "todo":
		return StatusToDo, nil
	case "inprogress":
		return StatusInProgress, nil
	case "done":
		return StatusDone, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ValidateDeadline rejects deadlines strictly before now.
func ValidateDeadline(deadline, now time.Time) error {
	if deadline.IsZero() {
		return Invalid("deadline is required")
	}
	if deadline.Before(now) {
		return ErrInvalidDeadline
	}
	return nil
}

// Task is a unit of work inside a project, assigned to one user.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Deadline       time.Time  `json:"deadline"`
	ProjectID      string     `json:"project_id"`
	AssignedUserID string     `json:"assigned_user_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusDone
}

func (t *Task) IsAssignee(userID string) bool {
	return t != nil && userID != "" && t.AssignedUserID == userID
}

// IsOverdue is true for an unfinished task whose deadline has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t != nil && !t.IsCompleted() && t.Deadline.Before(now)
}

// Submit moves the task to Done from any state.
func (t *Task) Submit() {
	t.Status = StatusDone
}

// Reopen moves a Done task back to In Progress. A nil deadline keeps the
// current one even if it has already passed.
func (t *Task) Reopen(deadline *time.Time, now time.Time) error {
	if t.Status != StatusDone {
		return ErrInvalidTransition
	}
	if deadline != nil {
		if err := ValidateDeadline(*deadline, now); err != nil {
			return err
		}
		t.Deadline = *deadline
	}
	t.Status = StatusInProgress
	return nil
}

// Apply writes the non-nil patch fields onto the task after validating them.
func (t *Task) Apply(patch TaskPatch, now time.Time) error {
	var title string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" {
			return Invalid("title is required")
		}
	}
	if patch.Deadline != nil {
		if err := ValidateDeadline(*patch.Deadline, now); err != nil {
			return err
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return ErrInvalidStatus
	}

	if patch.Title != nil {
		t.Title = title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Deadline != nil {
		t.Deadline = *patch.Deadline
	}
	if patch.ProjectID != nil {
		t.ProjectID = *patch.ProjectID
	}
	if patch.AssignedUserID != nil {
		t.AssignedUserID = *patch.AssignedUserID
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	return nil
}

// TaskPatch is a partial task update; nil fields are left untouched.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *TaskStatus
	Deadline       *time.Time
	ProjectID      *string
	AssignedUserID *string
}

// RestrictFor collapses the patch to what the principal may edit: admins
// manage the task definition but never its status, everyone else only the status.
func (p TaskPatch) RestrictFor(principal Principal) TaskPatch {
	if principal.IsAdmin() {
		p.Status = nil
		return p
	}
	return TaskPatch{Status: p.Status}
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Deadline == nil && p.ProjectID == nil && p.AssignedUserID == nil
}
