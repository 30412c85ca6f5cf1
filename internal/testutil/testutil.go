// Package testutil provides a migrated SQLite store and in-memory fakes for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/repository/sqlite"
)

// NewStore migrates a fresh SQLite file under t.TempDir and returns its repositories.
func NewStore(t testing.TB) repository.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskhub.db")
	if err := sqlite.Migrate(path, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlite.NewStore(db)
}

// SeedUser inserts a user directly, bypassing registration rules.
func SeedUser(t testing.TB, store repository.Store, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "unused",
		Role:         role,
	}
	if err := store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user
}

// SeedProject inserts a project created by owner with the given members.
func SeedProject(t testing.TB, store repository.Store, owner *domain.User, members ...string) *domain.Project {
	t.Helper()
	project := &domain.Project{
		ID:            uuid.NewString(),
		Title:         "project",
		CreatedBy:     owner.ID,
		AssignedUsers: members,
	}
	if err := store.Projects.Create(context.Background(), project); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return project
}

// SeedTask inserts a task without deadline validation, so past deadlines are allowed.
func SeedTask(t testing.TB, store repository.Store, projectID, assigneeID string, status domain.TaskStatus, deadline time.Time) *domain.Task {
	t.Helper()
	task := &domain.Task{
		Title:          "task",
		Status:         status,
		Deadline:       deadline,
		ProjectID:      projectID,
		AssignedUserID: assigneeID,
	}
	if err := store.Tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

// Recorder collects recorded events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
	// Err, when set, is returned by Record after the event is kept.
	Err error
}

func (r *Recorder) Record(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Sessions is an in-memory SessionRepository.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]domain.Session)}
}

func (s *Sessions) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *Sessions) Save(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *Sessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Sessions) Extend(_ context.Context, id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.ExpiresAt = expiresAt
	s.sessions[id] = session
	return nil
}

// Len reports how many sessions are stored.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
