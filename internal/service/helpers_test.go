package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixture is a fresh database with one admin, two of their users and an
// unrelated admin with a user of their own.
type fixture struct {
	ctx   context.Context
	clock *fakeClock
	tasks *repository.TaskRepository
	users *repository.UserRepository

	admin      model.User
	alice      model.User
	bob        model.User
	otherAdmin model.User
	carol      model.User
}

var testStart = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "taskboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		ctx:   context.Background(),
		clock: newFakeClock(testStart),
		tasks: repository.NewTaskRepository(db),
		users: repository.NewUserRepository(db),
	}
	f.admin = f.createUser(t, model.User{Name: "Admin One", Email: "admin1@example.com", Role: model.RoleAdmin, AdminType: "Admin 1"})
	f.otherAdmin = f.createUser(t, model.User{Name: "Admin Two", Email: "admin2@example.com", Role: model.RoleAdmin, AdminType: "Admin 2"})
	f.alice = f.createUser(t, model.User{Name: "Alice", Email: "alice@example.com", Role: model.RoleUser, AdminID: &f.admin.ID})
	f.bob = f.createUser(t, model.User{Name: "Bob", Email: "bob@example.com", Role: model.RoleUser, AdminID: &f.admin.ID})
	f.carol = f.createUser(t, model.User{Name: "Carol", Email: "carol@example.com", Role: model.RoleUser, AdminID: &f.otherAdmin.ID})
	return f
}

func (f *fixture) createUser(t *testing.T, u model.User) model.User {
	t.Helper()
	if u.PasswordHash == "" {
		u.PasswordHash = "x"
	}
	require.NoError(t, f.users.Create(f.ctx, &u))
	return u
}

func (f *fixture) taskService() *TaskService {
	return NewTaskService(f.tasks, f.users, f.clock, nil)
}

func (f *fixture) trashService() *TrashService {
	return NewTrashService(f.tasks, f.clock, DefaultRetention, nil)
}

func actorOf(u model.User) Actor {
	return ActorFor(&u)
}

func ptr[T any](v T) *T {
	return &v
}
