package policy

import (
	"errors"
	"testing"

	"github.com/fastygo/taskhub/domain"
)

var (
	admin    = domain.Principal{UserID: "admin", Role: domain.RoleAdmin}
	creator  = domain.Principal{UserID: "creator", Role: domain.RoleUser}
	member   = domain.Principal{UserID: "member", Role: domain.RoleUser}
	stranger = domain.Principal{UserID: "stranger", Role: domain.RoleUser}
	nobody   = domain.Principal{}
)

func TestDecide(t *testing.T) {
	project := &domain.Project{ID: "p", CreatedBy: "creator", AssignedUsers: []string{"member"}}
	task := &domain.Task{ID: "t", AssignedUserID: "member"}

	cases := []struct {
		name      string
		principal domain.Principal
		action    Action
		target    Target
		allowed   bool
		reason    domain.DenyReason
	}{
		{"member reads project", member, ProjectRead, Target{Project: project}, true, ""},
		{"stranger reads project", stranger, ProjectRead, Target{Project: project}, false, domain.ReasonNotCreator},
		{"member updates project", member, ProjectUpdate, Target{Project: project}, false, domain.ReasonNotCreator},
		{"creator deletes project", creator, ProjectDelete, Target{Project: project}, true, ""},
		{"admin assigns users", admin, ProjectAssign, Target{Project: project}, true, ""},
		{"stranger creates task", stranger, TaskCreate, Target{}, true, ""},
		{"assignee updates task", member, TaskUpdate, Target{Task: task}, true, ""},
		{"creator updates task", creator, TaskUpdate, Target{Task: task}, false, domain.ReasonNotAssignee},
		{"admin submits task", admin, TaskSubmit, Target{Task: task}, false, domain.ReasonNotAssignee},
		{"assignee submits task", member, TaskSubmit, Target{Task: task}, true, ""},
		{"assignee reopens task", member, TaskReopen, Target{Task: task}, false, domain.ReasonNotAdmin},
		{"admin reopens task", admin, TaskReopen, Target{Task: task}, true, ""},
		{"assignee deletes task", member, TaskDelete, Target{Task: task}, false, domain.ReasonNotAdmin},
		{"bootstrap admin", nobody, UserCreateAdmin, Target{EmptyStore: true}, true, ""},
		{"anonymous admin", nobody, UserCreateAdmin, Target{}, false, domain.ReasonNotAdmin},
		{"user lists users", member, UserList, Target{}, false, domain.ReasonNotAdmin},
		{"missing project", admin, ProjectRead, Target{}, false, domain.ReasonNotFound},
		{"unknown action", admin, Action("nope"), Target{}, false, domain.ReasonNotAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.principal, tc.action, tc.target)
			if got.Allowed != tc.allowed || got.Reason != tc.reason {
				t.Fatalf("Decide = %+v, want allowed=%v reason=%q", got, tc.allowed, tc.reason)
			}
		})
	}
}

func TestAuthorizeErrors(t *testing.T) {
	project := &domain.Project{ID: "p", CreatedBy: "creator"}

	err := Authorize(member, ProjectDelete, Target{Project: project})
	var dErr *domain.Error
	if !errors.As(err, &dErr) || dErr.Code != domain.ErrCodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if dErr.Action != string(ProjectDelete) || dErr.Reason != domain.ReasonNotCreator {
		t.Fatalf("unexpected action/reason %q/%q", dErr.Action, dErr.Reason)
	}

	if err := Authorize(nobody, ProjectRead, Target{Project: project}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous: %v", err)
	}
	if err := Authorize(member, TaskRead, Target{}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("missing task: %v", err)
	}
	if err := Authorize(member, ProjectUpdate, Target{}); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("missing project: %v", err)
	}
	if err := Authorize(creator, ProjectUpdate, Target{Project: project}); err != nil {
		t.Fatalf("creator update: %v", err)
	}
}
