package transport

import (
	"encoding/json"
	"time"

	"github.com/fastygo/taskhub/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// ErrorBody is the error member of an error envelope. Action and Reason are
// set on authorization denials.
type ErrorBody struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ListMeta accompanies list responses.
type ListMeta struct {
	Count int `json:"count"`
}

type MessageView struct {
	Message string `json:"message"`
}

// TaskView is a task with its computed overdue flag.
type TaskView struct {
	domain.Task
	Overdue bool `json:"overdue"`
}

func NewTaskView(task domain.Task, now time.Time) TaskView {
	return TaskView{Task: task, Overdue: task.IsOverdue(now)}
}

func NewTaskViews(tasks []domain.Task, now time.Time) []TaskView {
	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = NewTaskView(t, now)
	}
	return views
}

// AuthView is returned by register, login and refresh. Token is omitted for
// admin-initiated registrations.
type AuthView struct {
	User      *domain.User `json:"user,omitempty"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}
