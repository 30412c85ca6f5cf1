package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/repository/sqlite"
)

type store struct {
	db       *sql.DB
	users    repository.UserRepository
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	activity repository.ActivityRepository
	tx       repository.Transactor
}

func newStore(t *testing.T) store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskhub.db")
	if err := sqlite.Migrate(path, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repos := sqlite.NewStore(db)
	return store{
		db:       db,
		users:    repos.Users,
		projects: repos.Projects,
		tasks:    repos.Tasks,
		activity: repos.Activity,
		tx:       repos.Tx,
	}
}

func seedUser(t *testing.T, s store, id, email string) *domain.User {
	t.Helper()
	user := &domain.User{ID: id, Name: id, Email: email, PasswordHash: "x", Role: domain.RoleUser}
	if err := s.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return user
}

func TestUserEmailIsUniqueCaseInsensitive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "Ann@Example.com")

	err := s.users.Create(ctx, &domain.User{ID: "u2", Name: "dup", Email: "ann@example.com", PasswordHash: "x", Role: domain.RoleUser})
	if !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("expected duplicate user, got %v", err)
	}

	got, err := s.users.GetByEmail(ctx, "ANN@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("got user %s", got.ID)
	}
}

func TestProjectMembershipIsASet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "owner", "owner@example.com")
	seedUser(t, s, "a", "a@example.com")
	seedUser(t, s, "b", "b@example.com")

	project := &domain.Project{ID: "p1", Title: "P", CreatedBy: "owner", AssignedUsers: []string{"a", "a"}}
	if err := s.projects.Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.projects.AddMembers(ctx, "p1", []string{"b", "a"}); err != nil {
			t.Fatalf("add members: %v", err)
		}
	}

	got, err := s.projects.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if len(got.AssignedUsers) != 2 || got.AssignedUsers[0] != "a" || got.AssignedUsers[1] != "b" {
		t.Fatalf("unexpected members %v", got.AssignedUsers)
	}

	removed, err := s.projects.RemoveMemberEverywhere(ctx, "a")
	if err != nil || removed != 1 {
		t.Fatalf("remove member: removed=%d err=%v", removed, err)
	}
	got, _ = s.projects.GetByID(ctx, "p1")
	if got.HasMember("a") {
		t.Fatalf("member a still present: %v", got.AssignedUsers)
	}
}

func TestProjectListVisibleTo(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		seedUser(t, s, id, id+"@example.com")
	}
	mustCreate := func(p *domain.Project) {
		if err := s.projects.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}
	mustCreate(&domain.Project{ID: "own", Title: "own", CreatedBy: "u1"})
	mustCreate(&domain.Project{ID: "member", Title: "member", CreatedBy: "u2", AssignedUsers: []string{"u1"}})
	mustCreate(&domain.Project{ID: "other", Title: "other", CreatedBy: "u3"})

	visible, err := s.projects.List(ctx, repository.ProjectFilter{VisibleTo: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible projects, got %d", len(visible))
	}
	for _, p := range visible {
		if p.ID == "other" {
			t.Fatalf("foreign project leaked into scoped list")
		}
	}

	all, err := s.projects.List(ctx, repository.ProjectFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: n=%d err=%v", len(all), err)
	}
}

func TestProjectWithTasksCannotBeDeletedDirectly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "u1@example.com")
	if err := s.projects.Create(ctx, &domain.Project{ID: "p1", Title: "P", CreatedBy: "u1"}); err != nil {
		t.Fatal(err)
	}
	task := &domain.Task{Title: "t", Status: domain.StatusToDo, Deadline: time.Now().Add(time.Hour), ProjectID: "p1", AssignedUserID: "u1"}
	if err := s.tasks.Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.projects.Delete(ctx, "p1"); err == nil {
		t.Fatalf("expected foreign key failure when deleting a project with tasks")
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.tasks.DeleteByProject(ctx, "p1"); err != nil {
			return err
		}
		return s.projects.Delete(ctx, "p1")
	})
	if err != nil {
		t.Fatalf("purge then delete: %v", err)
	}
	count, err := s.tasks.CountByProject(ctx, "p1")
	if err != nil || count != 0 {
		t.Fatalf("count after cascade: %d %v", count, err)
	}
}

func TestTransactorRollsBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, &domain.User{ID: "u1", Name: "n", Email: "n@example.com", PasswordHash: "x", Role: domain.RoleUser}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	count, err := s.users.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected rollback, count=%d err=%v", count, err)
	}
}

func TestTaskFilters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "u1@example.com")
	seedUser(t, s, "u2", "u2@example.com")
	if err := s.projects.Create(ctx, &domain.Project{ID: "p1", Title: "P", CreatedBy: "u1"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		assignee string
		status   domain.TaskStatus
	}{
		{"u1", domain.StatusToDo},
		{"u1", domain.StatusDone},
		{"u2", domain.StatusInProgress},
	} {
		task := &domain.Task{Title: "t", Status: tc.status, Deadline: deadline, ProjectID: "p1", AssignedUserID: tc.assignee}
		if err := s.tasks.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := s.tasks.List(ctx, repository.TaskFilter{AssigneeID: "u1"})
	if err != nil || len(mine) != 2 {
		t.Fatalf("assignee filter: n=%d err=%v", len(mine), err)
	}
	done, err := s.tasks.List(ctx, repository.TaskFilter{AssigneeID: "u1", Status: domain.StatusDone})
	if err != nil || len(done) != 1 {
		t.Fatalf("status filter: n=%d err=%v", len(done), err)
	}
	if !done[0].Deadline.Equal(deadline) {
		t.Fatalf("deadline round trip: %v", done[0].Deadline)
	}
}

func TestActivityAppendIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	event := domain.NewEvent(domain.EventTaskCreated, domain.EntityTask, "t1", "u1", map[string]string{"title": "x"})

	for i := 0; i < 2; i++ {
		if err := s.activity.Append(ctx, event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	events, err := s.activity.List(ctx, repository.ActivityFilter{EntityKind: domain.EntityTask})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].ID != event.ID {
		t.Fatalf("unexpected events %+v", events)
	}
	if string(events[0].Payload) != `{"title":"x"}` {
		t.Fatalf("payload %s", events[0].Payload)
	}
}
