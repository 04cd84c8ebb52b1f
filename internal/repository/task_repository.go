package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskboard/internal/model"
)

// ErrStaleRevision is returned when a compare-and-swap write loses to a concurrent writer.
var ErrStaleRevision = errors.New("stale revision")

// TaskFilter narrows List results. Zero values mean "any".
type TaskFilter struct {
	Priority  model.Priority
	Category  string
	Completed *bool
}

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.Revision == 0 {
		task.Revision = 1
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID returns the task regardless of trash state.
func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// ListVisible returns active tasks the actor may see.
// Admins see tasks they own, assigned or received; users see tasks assigned to them.
func (r *TaskRepository) ListVisible(ctx context.Context, userID uint, role model.Role, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("deleted_at IS NULL")
	if role == model.RoleAdmin {
		q = q.Where("(user_id = ? OR assigned_by_id = ? OR assigned_to_id = ?)", userID, userID, userID)
	} else {
		q = q.Where("assigned_to_id = ?", userID)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Completed != nil {
		q = q.Where("is_completed = ?", *filter.Completed)
	}

	var tasks []model.Task
	if err := q.Order("due_date IS NULL, due_date ASC, created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOpenAssigned returns active, incomplete tasks assigned to userID.
func (r *TaskRepository) ListOpenAssigned(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("assigned_to_id = ? AND is_completed = ? AND deleted_at IS NULL", userID, false).
		Order("due_date IS NULL, due_date ASC, created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTrashedSince returns tasks owned by userID trashed at or after cutoff, newest first.
func (r *TaskRepository) ListTrashedSince(ctx context.Context, userID uint, cutoff time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NOT NULL AND deleted_at >= ?", userID, cutoff).
		Order("deleted_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListReminderCandidates returns active, incomplete tasks with an unsent reminder and a due date after now.
func (r *TaskRepository) ListReminderCandidates(ctx context.Context, now time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL AND is_completed = ?", false).
		Where("reminder_minutes_before IS NOT NULL AND reminder_sent_at IS NULL").
		Where("due_date IS NOT NULL AND due_date > ?", now).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListRecurrenceSources returns completed recurring tasks that have not spawned a successor yet.
func (r *TaskRepository) ListRecurrenceSources(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL AND is_completed = ?", true).
		Where("recurrence_type <> ? AND recurrence_type <> ''", model.RecurNone).
		Where("due_date IS NOT NULL AND last_recurrence_date IS NULL").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Save writes every column of task if its revision still matches the stored one,
// then bumps the revision. ErrStaleRevision means someone else wrote first.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	return saveWithRevision(r.db.WithContext(ctx), task)
}

func saveWithRevision(db *gorm.DB, task *model.Task) error {
	prev := task.Revision
	task.Revision = prev + 1
	res := db.Model(task).
		Where("revision = ?", prev).
		Select("*").
		Omit("id", "created_at").
		Updates(task)
	if res.Error != nil {
		task.Revision = prev
		return fmt.Errorf("save task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		task.Revision = prev
		return ErrStaleRevision
	}
	return nil
}

// SpawnOccurrence stamps source and inserts next in one transaction.
func (r *TaskRepository) SpawnOccurrence(ctx context.Context, source, next *model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveWithRevision(tx, source); err != nil {
			return err
		}
		next.Revision = 1
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("create occurrence: %w", err)
		}
		return nil
	})
}

// MarkReminderSent stamps the reminder without touching the revision; it is bookkeeping only.
func (r *TaskRepository) MarkReminderSent(ctx context.Context, taskID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).
		UpdateColumn("reminder_sent_at", at).Error
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// Delete removes a task row permanently.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	res := r.db.WithContext(ctx).Where("id = ?", taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeTrashedBefore removes every task trashed before cutoff and returns how many were removed.
func (r *TaskRepository) PurgeTrashedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge trash: %w", res.Error)
	}
	return res.RowsAffected, nil
}
