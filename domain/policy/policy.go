// Package policy holds the authorization rules of the tracker as a table of
// pure decision functions. Rules never touch storage; callers load the target
// entity first and pass a snapshot.
package policy

import "github.com/fastygo/taskhub/domain"

// Action names a guarded operation.
type Action string

const (
	ProjectCreate     Action = "project.create"
	ProjectRead       Action = "project.read"
	ProjectUpdate     Action = "project.update"
	ProjectDelete     Action = "project.delete"
	ProjectAssign     Action = "project.assign"
	ProjectPurgeTasks Action = "project.purge_tasks"

	TaskCreate Action = "task.create"
	TaskRead   Action = "task.read"
	TaskUpdate Action = "task.update"
	TaskSubmit Action = "task.submit"
	TaskReopen Action = "task.reopen"
	TaskDelete Action = "task.delete"

	UserCreateAdmin Action = "user.create_admin"
	UserList        Action = "user.list"
	UserRead        Action = "user.read"
	UserUpdate      Action = "user.update"
	UserDelete      Action = "user.delete"

	ActivityList Action = "activity.list"
)

// Target is the snapshot a rule decides on. Only the fields relevant to the
// action need to be set.
type Target struct {
	Project *domain.Project
	Task    *domain.Task
	// EmptyStore is true while no user exists yet (bootstrap registration).
	EmptyStore bool
}

// Decision is the outcome of a rule.
type Decision struct {
	Allowed bool
	Reason  domain.DenyReason
}

// Rule decides whether principal may perform an action on target.
type Rule func(principal domain.Principal, target Target) Decision

func allow() Decision { return Decision{Allowed: true} }

func deny(reason domain.DenyReason) Decision { return Decision{Reason: reason} }

var rules = map[Action]Rule{
	ProjectCreate:     authenticated,
	ProjectRead:       projectViewer,
	ProjectUpdate:     projectOwner,
	ProjectDelete:     projectOwner,
	ProjectAssign:     projectOwner,
	ProjectPurgeTasks: projectOwner,

	// Task creation is not gated on rights over the target project.
	TaskCreate: authenticated,
	TaskRead:   adminOrAssignee,
	TaskUpdate: adminOrAssignee,
	TaskSubmit: assigneeOnly,
	TaskReopen: adminOnly,
	TaskDelete: adminOnly,

	UserCreateAdmin: adminOrBootstrap,
	UserList:        adminOnly,
	UserRead:        adminOnly,
	UserUpdate:      adminOnly,
	UserDelete:      adminOnly,

	ActivityList: adminOnly,
}

// Decide evaluates the rule registered for action. Unknown actions are denied.
func Decide(principal domain.Principal, action Action, target Target) Decision {
	rule, ok := rules[action]
	if !ok {
		return deny(domain.ReasonNotAdmin)
	}
	return rule(principal, target)
}

// Authorize is Decide expressed as an error: nil when allowed, a FORBIDDEN
// domain error carrying action and reason otherwise. A NotFound reason is
// reported as the matching not-found error. Anonymous callers are
// unauthenticated for every action except admin creation, which an anonymous
// caller may only reach through bootstrap.
func Authorize(principal domain.Principal, action Action, target Target) error {
	if !principal.IsAuthenticated() && action != UserCreateAdmin {
		return domain.ErrUnauthorized
	}
	decision := Decide(principal, action, target)
	if decision.Allowed {
		return nil
	}
	if decision.Reason == domain.ReasonNotFound {
		switch {
		case target.Task == nil && isTaskAction(action):
			return domain.ErrTaskNotFound
		case target.Project == nil && isProjectAction(action):
			return domain.ErrProjectNotFound
		}
	}
	return domain.Forbidden(string(action), decision.Reason)
}

func authenticated(p domain.Principal, _ Target) Decision {
	if !p.IsAuthenticated() {
		return deny(domain.ReasonNotAdmin)
	}
	return allow()
}

func adminOnly(p domain.Principal, _ Target) Decision {
	if p.IsAdmin() {
		return allow()
	}
	return deny(domain.ReasonNotAdmin)
}

func adminOrBootstrap(p domain.Principal, t Target) Decision {
	if t.EmptyStore || p.IsAdmin() {
		return allow()
	}
	return deny(domain.ReasonNotAdmin)
}

func projectViewer(p domain.Principal, t Target) Decision {
	if t.Project == nil {
		return deny(domain.ReasonNotFound)
	}
	if p.IsAdmin() || t.Project.IsCreator(p.UserID) || t.Project.HasMember(p.UserID) {
		return allow()
	}
	return deny(domain.ReasonNotCreator)
}

func projectOwner(p domain.Principal, t Target) Decision {
	if t.Project == nil {
		return deny(domain.ReasonNotFound)
	}
	if p.IsAdmin() || t.Project.IsCreator(p.UserID) {
		return allow()
	}
	return deny(domain.ReasonNotCreator)
}

func adminOrAssignee(p domain.Principal, t Target) Decision {
	if t.Task == nil {
		return deny(domain.ReasonNotFound)
	}
	if p.IsAdmin() || t.Task.IsAssignee(p.UserID) {
		return allow()
	}
	return deny(domain.ReasonNotAssignee)
}

// assigneeOnly does not exempt admins: nobody submits on behalf of the assignee.
func assigneeOnly(p domain.Principal, t Target) Decision {
	if t.Task == nil {
		return deny(domain.ReasonNotFound)
	}
	if t.Task.IsAssignee(p.UserID) {
		return allow()
	}
	return deny(domain.ReasonNotAssignee)
}

func isTaskAction(a Action) bool {
	switch a {
	case TaskRead, TaskUpdate, TaskSubmit, TaskReopen, TaskDelete:
		return true
	}
	return false
}

func isProjectAction(a Action) bool {
	switch a {
	case ProjectRead, ProjectUpdate, ProjectDelete, ProjectAssign, ProjectPurgeTasks:
		return true
	}
	return false
}
