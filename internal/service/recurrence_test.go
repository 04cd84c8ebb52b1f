package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name     string
		current  time.Time
		typ      model.RecurrenceType
		interval int
		want     time.Time
	}{
		{"daily", date(2024, 3, 1), model.RecurDaily, 1, date(2024, 3, 2)},
		{"every three days", date(2024, 3, 1), model.RecurDaily, 3, date(2024, 3, 4)},
		{"weekly", date(2024, 3, 1), model.RecurWeekly, 1, date(2024, 3, 8)},
		{"fortnightly", date(2024, 3, 1), model.RecurWeekly, 2, date(2024, 3, 15)},
		{"monthly", date(2024, 3, 15), model.RecurMonthly, 1, date(2024, 4, 15)},
		{"monthly rolls over short month", date(2024, 1, 31), model.RecurMonthly, 1, date(2024, 3, 2)},
		{"monthly rolls over in non-leap year", date(2023, 1, 31), model.RecurMonthly, 1, date(2023, 3, 3)},
		{"quarterly", date(2024, 11, 30), model.RecurMonthly, 3, date(2025, 3, 2)},
		{"custom", date(2024, 3, 1), model.RecurCustom, 10, date(2024, 3, 11)},
		{"interval below one counts as one", date(2024, 3, 1), model.RecurDaily, 0, date(2024, 3, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := tt.current
			got := NextDueDate(&current, tt.typ, tt.interval)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	due := date(2024, 3, 1)
	assert.Nil(t, NextDueDate(&due, model.RecurNone, 1))
	assert.Nil(t, NextDueDate(nil, model.RecurDaily, 1))
}

func TestNextOccurrence(t *testing.T) {
	due := date(2024, 3, 1)
	source := &model.Task{
		ID:                    7,
		UserID:                1,
		AssignedToID:          2,
		AssignedByID:          ptr(uint(1)),
		UserCompleted:         true,
		AdminCompleted:        true,
		IsCompleted:           true,
		Title:                 "Standup notes",
		DueDate:               &due,
		Priority:              model.PriorityHigh,
		Category:              "Work",
		Subtasks:              []model.Subtask{{Title: "collect", Completed: true}},
		RecurrenceType:        model.RecurWeekly,
		RecurrenceInterval:    1,
		ReminderMinutesBefore: ptr(15),
	}

	next := NextOccurrence(source)
	require.NotNil(t, next)
	assert.Zero(t, next.ID)
	assert.Equal(t, source.UserID, next.UserID)
	assert.Equal(t, source.AssignedToID, next.AssignedToID)
	require.NotNil(t, next.AssignedByID)
	assert.Equal(t, uint(1), *next.AssignedByID)
	assert.False(t, next.IsCompleted)
	assert.False(t, next.UserCompleted)
	assert.False(t, next.AdminCompleted)
	assert.Equal(t, []model.Subtask{{Title: "collect"}}, next.Subtasks)
	assert.Equal(t, date(2024, 3, 8), *next.DueDate)
	assert.Equal(t, 15, *next.ReminderMinutesBefore)

	source.RecurrenceType = model.RecurNone
	assert.Nil(t, NextOccurrence(source))
}

func TestSpawnDue(t *testing.T) {
	f := newFixture(t)
	tasks := f.taskService()
	actor := actorOf(f.alice)
	spawner := NewRecurrenceService(f.tasks, f.clock, nil)

	due := Timestamp{Time: date(2024, 1, 31)}
	task, err := tasks.Create(f.ctx, actor, CreateTaskInput{Title: "Pay rent", DueDate: &due, RecurrenceType: model.RecurMonthly})
	require.NoError(t, err)

	n, err := spawner.SpawnDue(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "open tasks do not recur")

	_, err = tasks.MarkDone(f.ctx, actor, task.ID)
	require.NoError(t, err)

	n, err = spawner.SpawnDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = spawner.SpawnDue(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a source spawns once")

	open, err := tasks.List(f.ctx, actor, repository.TaskFilter{Completed: ptr(false)})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Pay rent", open[0].Title)
	assert.True(t, open[0].DueDate.Equal(date(2024, 3, 2)))

	source, err := f.tasks.FindByID(f.ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, source.LastRecurrenceDate)
	assert.True(t, source.LastRecurrenceDate.Equal(testStart))
}
