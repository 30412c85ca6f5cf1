package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskhub/api/handler"
	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/infrastructure/monitor"
	"github.com/fastygo/taskhub/internal/middleware"
	"github.com/fastygo/taskhub/internal/router"
	"github.com/fastygo/taskhub/internal/security"
	"github.com/fastygo/taskhub/internal/testutil"
	"github.com/fastygo/taskhub/pkg/httpcontext"
	"github.com/fastygo/taskhub/repository"
	activityUC "github.com/fastygo/taskhub/usecase/activity"
	authUC "github.com/fastygo/taskhub/usecase/auth"
	projectUC "github.com/fastygo/taskhub/usecase/project"
	taskUC "github.com/fastygo/taskhub/usecase/task"
	userUC "github.com/fastygo/taskhub/usecase/user"
)

const (
	futureDate = "2099-12-31"
	pastDate   = "2000-01-01"
)

// activityLog records events straight into the activity table.
type activityLog struct{ repo repository.ActivityRepository }

func (a activityLog) Record(ctx context.Context, event domain.Event) error {
	return a.repo.Append(ctx, event)
}

type response struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Message string `json:"message"`
		Action  string `json:"action"`
		Reason  string `json:"reason"`
	} `json:"error"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	status int
}

func (r response) decode(t *testing.T, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", r.Data, err)
	}
}

type app struct {
	handler fasthttp.RequestHandler
	store   repository.Store
}

func newApp(t *testing.T) app {
	t.Helper()
	store := testutil.NewStore(t)
	tokens, err := security.NewTokenManager("test-secret", "taskhub-test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	recorder := activityLog{repo: store.Activity}

	auth := authUC.New(store.Users, testutil.NewSessions(), store.Tx, tokens, security.NewHasher(4), recorder, nil)
	users := userUC.New(store.Users, store.Projects, store.Tx, recorder, nil)
	mon := monitor.New([]monitor.Check{{
		Name:     monitor.ComponentStorage,
		Critical: true,
		Ping:     func(context.Context) error { return nil },
	}}, nil, 0, nil)

	adapter := httpcontext.NewAdapter(5 * time.Second)
	handlers := router.Handlers{
		Auth:     apiHandler.NewAuthHandler(auth, users, adapter, nil),
		Project:  apiHandler.NewProjectHandler(projectUC.New(store.Projects, store.Tasks, store.Users, store.Tx, recorder, nil), adapter, nil),
		Task:     apiHandler.NewTaskHandler(taskUC.New(store.Tasks, store.Projects, store.Users, store.Tx, recorder, nil), adapter, nil),
		User:     apiHandler.NewUserHandler(users, adapter, nil),
		Activity: apiHandler.NewActivityHandler(activityUC.New(store.Activity), adapter, nil),
		Health:   apiHandler.NewHealthHandler(mon, adapter, nil),
	}
	r := router.New(handlers,
		middleware.JWTAuth(auth, adapter, nil),
		middleware.OptionalAuth(auth, adapter, nil),
	)
	return app{handler: r.Handler, store: store}
}

func (a app) do(t *testing.T, method, path, token string, body interface{}) response {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	a.handler(&ctx)

	var res response
	if err := json.Unmarshal(ctx.Response.Body(), &res); err != nil {
		t.Fatalf("%s %s: invalid body %q: %v", method, path, ctx.Response.Body(), err)
	}
	res.status = ctx.Response.StatusCode()
	return res
}

func (a app) expect(t *testing.T, res response, status int, code string) {
	t.Helper()
	if res.status != status || res.Code != code {
		t.Fatalf("got %d %q (%s), want %d %q", res.status, res.Code, res.Error.Message, status, code)
	}
}

type authView struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

func (a app) register(t *testing.T, token, name, role string) authView {
	t.Helper()
	res := a.do(t, http.MethodPost, "/api/v1/auth/register", token, map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret123", "role": role,
	})
	a.expect(t, res, http.StatusCreated, "")
	var view authView
	res.decode(t, &view)
	return view
}

func (a app) login(t *testing.T, name string) string {
	t.Helper()
	res := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": name + "@example.com", "password": "secret123",
	})
	a.expect(t, res, http.StatusOK, "")
	var view authView
	res.decode(t, &view)
	return view.Token
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	res := a.do(t, http.MethodGet, "/health", "", nil)
	a.expect(t, res, http.StatusOK, "")
}

func TestRegistrationBootstrapAndAdminGate(t *testing.T) {
	a := newApp(t)

	first := a.register(t, "", "root", "")
	if first.User.Role != domain.RoleAdmin || first.Token == "" {
		t.Fatalf("first user should be an admin with a token, got %+v", first)
	}

	res := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "mallory", "email": "mallory@example.com", "password": "secret123", "role": "admin",
	})
	a.expect(t, res, http.StatusForbidden, "FORBIDDEN")
	if res.Error.Reason == "" || res.Error.Action == "" {
		t.Fatalf("denial should carry action and reason: %+v", res.Error)
	}

	second := a.register(t, first.Token, "ops", "admin")
	if second.User.Role != domain.RoleAdmin || second.Token != "" {
		t.Fatalf("admin-created admin should have no token, got %+v", second)
	}

	res = a.do(t, http.MethodPost, "/api/v1/auth/register", "not-a-token", map[string]string{
		"name": "eve", "email": "eve@example.com", "password": "secret123",
	})
	a.expect(t, res, http.StatusUnauthorized, "UNAUTHORIZED")

	res = a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "dup", "email": "ROOT@example.com", "password": "secret123",
	})
	a.expect(t, res, http.StatusConflict, "CONFLICT")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newApp(t)
	a.expect(t, a.do(t, http.MethodGet, "/api/v1/projects", "", nil), http.StatusUnauthorized, "UNAUTHORIZED")
	a.expect(t, a.do(t, http.MethodGet, "/api/v1/tasks", "garbage", nil), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newApp(t)
	token := a.register(t, "", "root", "").Token

	a.expect(t, a.do(t, http.MethodGet, "/api/v1/auth/me", token, nil), http.StatusOK, "")
	a.expect(t, a.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil), http.StatusOK, "")
	a.expect(t, a.do(t, http.MethodGet, "/api/v1/auth/me", token, nil), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestProjectAndTaskLifecycle(t *testing.T) {
	a := newApp(t)
	admin := a.register(t, "", "root", "").Token
	alice := a.register(t, "", "alice", "")
	bob := a.register(t, "", "bob", "")
	aliceToken := alice.Token

	res := a.do(t, http.MethodPost, "/api/v1/projects", admin, map[string]interface{}{
		"title": "Launch", "assigned_users": []string{alice.User.ID},
	})
	a.expect(t, res, http.StatusCreated, "")
	var project domain.Project
	res.decode(t, &project)

	res = a.do(t, http.MethodPut, "/api/v1/projects/"+project.ID+"/assign-users", admin, map[string]interface{}{
		"user_ids": []string{alice.User.ID, bob.User.ID},
	})
	a.expect(t, res, http.StatusOK, "")
	res.decode(t, &project)
	if len(project.AssignedUsers) != 2 {
		t.Fatalf("assigned users = %v", project.AssignedUsers)
	}

	res = a.do(t, http.MethodPost, "/api/v1/tasks", admin, map[string]string{
		"title": "Write docs", "deadline": pastDate, "project_id": project.ID, "assigned_user_id": alice.User.ID,
	})
	a.expect(t, res, http.StatusBadRequest, "INVALID_DEADLINE")

	res = a.do(t, http.MethodPost, "/api/v1/tasks", admin, map[string]string{
		"title": "Write docs", "deadline": futureDate, "project_id": project.ID, "assigned_user_id": alice.User.ID,
	})
	a.expect(t, res, http.StatusCreated, "")
	var task domain.Task
	res.decode(t, &task)
	if task.Status != domain.StatusToDo {
		t.Fatalf("status = %q", task.Status)
	}

	// assignee may only move the status
	res = a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, aliceToken, map[string]string{
		"title": "Hijacked", "status": "in_progress",
	})
	a.expect(t, res, http.StatusOK, "")
	res.decode(t, &task)
	if task.Title != "Write docs" || task.Status != domain.StatusInProgress {
		t.Fatalf("assignee update = %+v", task)
	}

	res = a.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, bob.Token, nil)
	a.expect(t, res, http.StatusForbidden, "FORBIDDEN")

	res = a.do(t, http.MethodGet, "/api/v1/tasks", aliceToken, nil)
	a.expect(t, res, http.StatusOK, "")
	if res.Meta.Count != 1 {
		t.Fatalf("alice sees %d tasks", res.Meta.Count)
	}
	res = a.do(t, http.MethodGet, "/api/v1/tasks", bob.Token, nil)
	if res.Meta.Count != 0 {
		t.Fatalf("bob sees %d tasks", res.Meta.Count)
	}

	a.expect(t, a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/submit", admin, nil), http.StatusForbidden, "FORBIDDEN")
	res = a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/submit", aliceToken, nil)
	a.expect(t, res, http.StatusOK, "")
	res.decode(t, &task)
	if task.Status != domain.StatusDone {
		t.Fatalf("after submit status = %q", task.Status)
	}

	a.expect(t, a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/reopen", aliceToken, nil), http.StatusForbidden, "FORBIDDEN")
	res = a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/reopen", admin, map[string]string{"deadline": "2099-06-30"})
	a.expect(t, res, http.StatusOK, "")
	res.decode(t, &task)
	if task.Status != domain.StatusInProgress || task.Deadline.Format("2006-01-02") != "2099-06-30" {
		t.Fatalf("reopened task = %+v", task)
	}

	res = a.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID, aliceToken, nil)
	a.expect(t, res, http.StatusForbidden, "FORBIDDEN")
	a.expect(t, a.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID, admin, nil), http.StatusOK, "")

	a.expect(t, a.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, admin, nil), http.StatusNotFound, "NOT_FOUND")
	a.expect(t, a.do(t, http.MethodGet, "/api/v1/projects/"+project.ID, admin, nil), http.StatusNotFound, "NOT_FOUND")
	left, err := a.store.Tasks.CountByProject(context.Background(), project.ID)
	if err != nil || left != 0 {
		t.Fatalf("tasks left after cascade = %d, %v", left, err)
	}

	res = a.do(t, http.MethodGet, "/api/v1/activity?entity_kind=task&entity_id="+task.ID, admin, nil)
	a.expect(t, res, http.StatusOK, "")
	if res.Meta.Count == 0 {
		t.Fatal("expected task activity")
	}
	a.expect(t, a.do(t, http.MethodGet, "/api/v1/activity", aliceToken, nil), http.StatusForbidden, "FORBIDDEN")
}

func TestUserAdministration(t *testing.T) {
	a := newApp(t)
	admin := a.register(t, "", "root", "").Token
	alice := a.register(t, "", "alice", "")

	a.expect(t, a.do(t, http.MethodGet, "/api/v1/users", alice.Token, nil), http.StatusForbidden, "FORBIDDEN")

	res := a.do(t, http.MethodGet, "/api/v1/users", admin, nil)
	a.expect(t, res, http.StatusOK, "")
	if res.Meta.Count != 2 {
		t.Fatalf("users = %d", res.Meta.Count)
	}

	res = a.do(t, http.MethodPut, "/api/v1/users/"+alice.User.ID, admin, map[string]string{"name": "Alice A."})
	a.expect(t, res, http.StatusOK, "")
	var user domain.User
	res.decode(t, &user)
	if user.Name != "Alice A." {
		t.Fatalf("name = %q", user.Name)
	}

	a.expect(t, a.do(t, http.MethodDelete, "/api/v1/users/"+alice.User.ID, admin, nil), http.StatusOK, "")
	a.expect(t, a.do(t, http.MethodGet, "/api/v1/users/"+alice.User.ID, admin, nil), http.StatusNotFound, "NOT_FOUND")
}

func TestInvalidBody(t *testing.T) {
	a := newApp(t)
	admin := a.register(t, "", "root", "").Token

	var req fasthttp.Request
	req.Header.SetMethod(http.MethodPost)
	req.SetRequestURI("/api/v1/projects")
	req.Header.Set("Authorization", "Bearer "+admin)
	req.SetBodyString("{not json")
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	a.handler(&ctx)
	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
}

func TestTaskUpdateDropsFieldsOutsideRights(t *testing.T) {
	a := newApp(t)
	admin := a.register(t, "", "root", "").Token
	alice := a.register(t, "", "alice", "")

	res := a.do(t, http.MethodPost, "/api/v1/projects", admin, map[string]interface{}{"title": "Ops"})
	a.expect(t, res, http.StatusCreated, "")
	var project domain.Project
	res.decode(t, &project)

	res = a.do(t, http.MethodPost, "/api/v1/tasks", admin, map[string]string{
		"title": "Rotate keys", "deadline": futureDate, "project_id": project.ID, "assigned_user_id": alice.User.ID,
	})
	a.expect(t, res, http.StatusCreated, "")
	var task domain.Task
	res.decode(t, &task)
	deadline := task.Deadline

	// a malformed deadline is not the assignee's to send, so it is dropped
	res = a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, alice.Token, map[string]string{
		"status": "Done", "deadline": "not-a-date", "project_id": "  ",
	})
	a.expect(t, res, http.StatusOK, "")
	res.decode(t, &task)
	if task.Status != domain.StatusDone || !task.Deadline.Equal(deadline) || task.ProjectID != project.ID {
		t.Fatalf("assignee update = %+v", task)
	}

	res = a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, alice.Token, map[string]string{"status": "bogus"})
	a.expect(t, res, http.StatusBadRequest, "INVALID")

	// admins never set the status, whatever its value
	res = a.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, admin, map[string]string{
		"title": "Rotate all keys", "status": "bogus",
	})
	a.expect(t, res, http.StatusOK, "")
	res.decode(t, &task)
	if task.Title != "Rotate all keys" || task.Status != domain.StatusDone {
		t.Fatalf("admin update = %+v", task)
	}
}
