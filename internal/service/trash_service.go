package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// DefaultRetention is how long a trashed task stays restorable.
const DefaultRetention = 48 * time.Hour

// Expired reports whether a task trashed at trashedAt is past the retention window at now.
func Expired(trashedAt, now time.Time, retention time.Duration) bool {
	return trashedAt.Before(now.Add(-retention))
}

// TrashService handles soft deletion, restore and permanent removal.
type TrashService struct {
	tasks     *repository.TaskRepository
	clock     Clock
	retention time.Duration
	logger    *slog.Logger
}

func NewTrashService(tasks *repository.TaskRepository, clock Clock, retention time.Duration, logger *slog.Logger) *TrashService {
	if clock == nil {
		clock = SystemClock()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TrashService{tasks: tasks, clock: clock, retention: retention, logger: logger}
}

func (s *TrashService) Retention() time.Duration { return s.retention }

// Delete moves a task to the trash.
func (s *TrashService) Delete(ctx context.Context, actor Actor, taskID uint) error {
	task, err := s.find(ctx, taskID)
	if err != nil {
		return err
	}
	if err := Authorize(actor, task, ActionDelete, nil); err != nil {
		return err
	}
	if task.TrashState() == model.Trashed {
		return conflictf("task %d is already in the trash", taskID)
	}

	now := s.clock.Now()
	task.DeletedAt = &now
	if err := s.save(ctx, task); err != nil {
		return err
	}
	s.logger.Info("task trashed", "task_id", task.ID, "actor", actor.ID)
	return nil
}

// Restore brings a trashed task back while it is inside the retention window.
func (s *TrashService) Restore(ctx context.Context, actor Actor, taskID uint) (*model.Task, error) {
	task, err := s.find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, task, ActionRestore, nil); err != nil {
		return nil, err
	}
	if task.TrashState() != model.Trashed {
		return nil, conflictf("task %d is not in the trash", taskID)
	}
	if Expired(*task.DeletedAt, s.clock.Now(), s.retention) {
		return nil, conflictf("task %d was trashed more than %s ago and can no longer be restored", taskID, s.retention)
	}

	task.DeletedAt = nil
	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task restored", "task_id", task.ID, "actor", actor.ID)
	return task, nil
}

// ListTrash returns actor's trashed tasks that can still be restored, newest first.
func (s *TrashService) ListTrash(ctx context.Context, actor Actor) ([]model.Task, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	return s.tasks.ListTrashedSince(ctx, actor.ID, cutoff)
}

// PurgeForever removes a trashed task permanently.
func (s *TrashService) PurgeForever(ctx context.Context, actor Actor, taskID uint) error {
	task, err := s.find(ctx, taskID)
	if err != nil {
		return err
	}
	if err := Authorize(actor, task, ActionPurge, nil); err != nil {
		return err
	}
	if task.TrashState() != model.Trashed {
		return conflictf("task %d must be moved to the trash before it can be deleted permanently", taskID)
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("task %d not found", taskID)
		}
		return err
	}
	s.logger.Info("task purged", "task_id", taskID, "actor", actor.ID)
	return nil
}

// PurgeExpired removes every task whose retention window has elapsed.
func (s *TrashService) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	n, err := s.tasks.PurgeTrashedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired trash purged", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *TrashService) find(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("task %d not found", taskID)
		}
		return nil, err
	}
	return task, nil
}

func (s *TrashService) save(ctx context.Context, task *model.Task) error {
	if err := s.tasks.Save(ctx, task); err != nil {
		if errors.Is(err, repository.ErrStaleRevision) {
			return conflictf("task %d was modified concurrently, reload and retry", task.ID)
		}
		return err
	}
	return nil
}
