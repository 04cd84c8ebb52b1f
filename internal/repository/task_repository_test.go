package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskboard/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestSaveRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	task := &model.Task{UserID: 1, AssignedToID: 1, Title: "first", Priority: model.PriorityLow, RecurrenceType: model.RecurNone}
	require.NoError(t, repo.Create(ctx, task))
	assert.Equal(t, uint(1), task.Revision)

	a, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)

	a.Title = "from a"
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, uint(2), a.Revision)

	b.Title = "from b"
	assert.ErrorIs(t, repo.Save(ctx, b), ErrStaleRevision)
	assert.Equal(t, uint(1), b.Revision, "revision is restored on a lost race")

	stored, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "from a", stored.Title)
	assert.Equal(t, uint(2), stored.Revision)
}

func TestSaveWritesZeroValues(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task := &model.Task{
		UserID: 1, AssignedToID: 1, Title: "t", Priority: model.PriorityLow, RecurrenceType: model.RecurNone,
		IsCompleted: true, CompletedAt: &now, Subtasks: []model.Subtask{{Title: "a", Completed: true}},
	}
	require.NoError(t, repo.Create(ctx, task))

	task.IsCompleted = false
	task.CompletedAt = nil
	task.Subtasks = nil
	require.NoError(t, repo.Save(ctx, task))

	stored, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsCompleted)
	assert.Nil(t, stored.CompletedAt)
	assert.Empty(t, stored.Subtasks)
}

func TestListVisibleAndTrash(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	admin := uint(1)
	trashedAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	seed := []*model.Task{
		{UserID: admin, AssignedToID: admin, Title: "admin own"},
		{UserID: admin, AssignedToID: 2, AssignedByID: &admin, Title: "assigned"},
		{UserID: 2, AssignedToID: 2, Title: "user own"},
		{UserID: 3, AssignedToID: 3, Title: "other"},
		{UserID: 2, AssignedToID: 2, Title: "trashed", DeletedAt: &trashedAt},
	}
	for _, task := range seed {
		task.Priority = model.PriorityMedium
		task.RecurrenceType = model.RecurNone
		require.NoError(t, repo.Create(ctx, task))
	}

	adminTasks, err := repo.ListVisible(ctx, admin, model.RoleAdmin, TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, adminTasks, 2)

	userTasks, err := repo.ListVisible(ctx, 2, model.RoleUser, TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, userTasks, 2)
	for _, task := range userTasks {
		assert.NotEqual(t, "trashed", task.Title)
	}

	inTrash, err := repo.ListTrashedSince(ctx, 2, trashedAt.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, inTrash, 1)
	assert.Equal(t, "trashed", inTrash[0].Title)

	inTrash, err = repo.ListTrashedSince(ctx, 2, trashedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, inTrash)

	n, err := repo.PurgeTrashedBefore(ctx, trashedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, repo.Delete(ctx, 9999), ErrNotFound)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@localhost/db"))
	assert.True(t, isPostgres("postgresql://localhost/db"))
	assert.False(t, isPostgres("taskboard.db"))
	assert.False(t, isPostgres("file:test.db?cache=shared"))
}
