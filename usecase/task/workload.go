package task

import (
	"sort"
	"time"

	"github.com/fastygo/taskhub/domain"
)

// Workload counts the tasks of one assignee by status.
type Workload struct {
	AssigneeID string `json:"assignee_id"`
	ToDo       int    `json:"to_do"`
	InProgress int    `json:"in_progress"`
	Done       int    `json:"done"`
	Overdue    int    `json:"overdue"`
	Total      int    `json:"total"`
}

// Summarize groups tasks per assignee, ordered by assignee id.
func Summarize(tasks []domain.Task, now time.Time) []Workload {
	byAssignee := make(map[string]*Workload)
	for i := range tasks {
		t := &tasks[i]
		w, ok := byAssignee[t.AssignedUserID]
		if !ok {
			w = &Workload{AssigneeID: t.AssignedUserID}
			byAssignee[t.AssignedUserID] = w
		}
		switch t.Status {
		case domain.StatusToDo:
			w.ToDo++
		case domain.StatusInProgress:
			w.InProgress++
		case domain.StatusDone:
			w.Done++
		}
		if t.IsOverdue(now) {
			w.Overdue++
		}
		w.Total++
	}

	out := make([]Workload, 0, len(byAssignee))
	for _, w := range byAssignee {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssigneeID < out[j].AssigneeID })
	return out
}
