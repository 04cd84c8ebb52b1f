package service

import (
	"context"
	"errors"
	"log/slog"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// RecurrenceService creates the next occurrence of completed recurring tasks.
type RecurrenceService struct {
	tasks  *repository.TaskRepository
	clock  Clock
	logger *slog.Logger
}

func NewRecurrenceService(tasks *repository.TaskRepository, clock Clock, logger *slog.Logger) *RecurrenceService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RecurrenceService{tasks: tasks, clock: clock, logger: logger}
}

// SpawnDue creates one successor for every completed recurring task that has none yet
// and returns how many were created. A task that changed underneath is skipped until the next run.
func (s *RecurrenceService) SpawnDue(ctx context.Context) (int, error) {
	sources, err := s.tasks.ListRecurrenceSources(ctx)
	if err != nil {
		return 0, err
	}

	spawned := 0
	for i := range sources {
		if err := ctx.Err(); err != nil {
			return spawned, err
		}
		source := &sources[i]
		next := NextOccurrence(source)
		if next == nil {
			continue
		}
		now := s.clock.Now()
		source.LastRecurrenceDate = &now

		if err := s.tasks.SpawnOccurrence(ctx, source, next); err != nil {
			if errors.Is(err, repository.ErrStaleRevision) {
				s.logger.Warn("recurrence source changed, skipping", "task_id", source.ID)
				continue
			}
			return spawned, err
		}
		spawned++
		s.logger.Info("recurring task spawned",
			"source_id", source.ID,
			"task_id", next.ID,
			"due", next.DueDate,
		)
	}
	return spawned, nil
}

// NextOccurrence builds the task that follows source, or nil when source does not recur.
func NextOccurrence(source *model.Task) *model.Task {
	if !source.IsRecurring() {
		return nil
	}
	due := NextDueDate(source.DueDate, source.RecurrenceType, source.RecurrenceInterval)
	if due == nil {
		return nil
	}

	subtasks := make([]model.Subtask, len(source.Subtasks))
	for i, st := range source.Subtasks {
		subtasks[i] = model.Subtask{Title: st.Title}
	}
	next := &model.Task{
		UserID:             source.UserID,
		AssignedToID:       source.AssignedToID,
		Title:              source.Title,
		Description:        source.Description,
		DueDate:            due,
		Priority:           source.Priority,
		Category:           source.Category,
		Subtasks:           subtasks,
		RecurrenceType:     source.RecurrenceType,
		RecurrenceInterval: source.RecurrenceInterval,
	}
	if source.AssignedByID != nil {
		by := *source.AssignedByID
		next.AssignedByID = &by
	}
	if source.ReminderMinutesBefore != nil {
		minutes := *source.ReminderMinutesBefore
		next.ReminderMinutesBefore = &minutes
	}
	return next
}
