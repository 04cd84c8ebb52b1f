package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// CreateTaskInput represents data required to create a task.
type CreateTaskInput struct {
	Title                 string               `json:"title"`
	Description           string               `json:"description"`
	DueDate               *Timestamp           `json:"dueDate"`
	Priority              model.Priority       `json:"priority"`
	Category              string               `json:"category"`
	IsCompleted           bool                 `json:"isCompleted"`
	Subtasks              []model.Subtask      `json:"subtasks"`
	RecurrenceType        model.RecurrenceType `json:"recurrenceType"`
	RecurrenceInterval    *int                 `json:"recurrenceInterval"`
	ReminderMinutesBefore *int                 `json:"reminderMinutesBefore"`
	AssignedTo            *uint                `json:"assignedTo"`
}

// DefaultCategory is used when a task is created without one.
const DefaultCategory = "Other"

// TaskService implements the assignment and completion state machine.
type TaskService struct {
	tasks  *repository.TaskRepository
	users  *repository.UserRepository
	clock  Clock
	logger *slog.Logger
}

func NewTaskService(tasks *repository.TaskRepository, users *repository.UserRepository, clock Clock, logger *slog.Logger) *TaskService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TaskService{tasks: tasks, users: users, clock: clock, logger: logger}
}

// Create stores a new task owned by actor. Assigning to someone else makes it admin-assigned.
func (s *TaskService) Create(ctx context.Context, actor Actor, in CreateTaskInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidf("title is required and cannot be empty")
	}

	task := model.Task{
		UserID:             actor.ID,
		AssignedToID:       actor.ID,
		Title:              title,
		Description:        in.Description,
		Priority:           in.Priority,
		Category:           strings.TrimSpace(in.Category),
		Subtasks:           append([]model.Subtask{}, in.Subtasks...),
		RecurrenceType:     in.RecurrenceType,
		RecurrenceInterval: 1,
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if !task.Priority.Valid() {
		return nil, invalidf("priority must be Low, Medium, or High")
	}
	if task.Category == "" {
		task.Category = DefaultCategory
	}
	if task.RecurrenceType == "" {
		task.RecurrenceType = model.RecurNone
	}
	if !task.RecurrenceType.Valid() {
		return nil, invalidf("recurrence type must be none, daily, weekly, monthly, or custom")
	}
	if in.RecurrenceInterval != nil {
		if *in.RecurrenceInterval < 1 {
			return nil, invalidf("recurrence interval must be a positive integer")
		}
		task.RecurrenceInterval = *in.RecurrenceInterval
	}
	if in.ReminderMinutesBefore != nil {
		if *in.ReminderMinutesBefore < 0 {
			return nil, invalidf("reminder minutes before must be a non-negative integer")
		}
		minutes := *in.ReminderMinutesBefore
		task.ReminderMinutesBefore = &minutes
	}
	if err := validateSubtasks(task.Subtasks); err != nil {
		return nil, err
	}
	if in.DueDate != nil {
		due := in.DueDate.Time.UTC()
		task.DueDate = &due
	}

	if in.AssignedTo != nil && *in.AssignedTo != actor.ID {
		if err := s.checkAssignee(ctx, actor, *in.AssignedTo); err != nil {
			return nil, err
		}
		owner := actor.ID
		task.AssignedToID = *in.AssignedTo
		task.AssignedByID = &owner
	}

	// Admin-assigned tasks start open; completion needs both sides.
	if in.IsCompleted && !task.IsAdminAssigned() {
		now := s.clock.Now()
		task.IsCompleted = true
		task.CompletedAt = &now
	}

	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		"task_id", task.ID,
		"owner", task.UserID,
		"assigned_to", task.AssignedToID,
		"admin_assigned", task.IsAdminAssigned(),
	)
	return &task, nil
}

// Get returns an active task visible to actor.
func (s *TaskService) Get(ctx context.Context, actor Actor, taskID uint) (*model.Task, error) {
	task, err := s.loadActive(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, task) {
		return nil, forbiddenf("not authorized")
	}
	return task, nil
}

// List returns the active tasks actor can see.
func (s *TaskService) List(ctx context.Context, actor Actor, filter repository.TaskFilter) ([]model.Task, error) {
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, invalidf("priority must be Low, Medium, or High")
	}
	return s.tasks.ListVisible(ctx, actor.ID, actor.Role, filter)
}

// Update authorizes, validates and applies patch, then derives completion and persists.
func (s *TaskService) Update(ctx context.Context, actor Actor, taskID uint, patch TaskPatch) (*model.Task, error) {
	task, err := s.loadActive(ctx, taskID)
	if err != nil {
		return nil, err
	}
	// Access is checked before the revision and patch shape; fields after.
	if err := Authorize(actor, task, ActionUpdate, nil); err != nil {
		return nil, err
	}
	if patch.Revision != nil && *patch.Revision != task.Revision {
		return nil, conflictf("task %d was modified (revision %d, current %d)", taskID, *patch.Revision, task.Revision)
	}

	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, invalidf("no fields to update")
	}
	if err := Authorize(actor, task, ActionUpdate, fields); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	next := *task
	if patch.AssignedTo.Set && patch.AssignedTo.Value != task.AssignedToID {
		if err := s.reassign(ctx, actor, &next, patch.AssignedTo.Value); err != nil {
			return nil, err
		}
	}
	patch.apply(&next)
	if err := deriveCompletion(&next, task.IsCompleted, patch.IsCompleted, s.clock); err != nil {
		return nil, err
	}

	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	s.logger.Info("task updated",
		"task_id", next.ID,
		"actor", actor.ID,
		"fields", fields,
		"completed", next.IsCompleted,
		"revision", next.Revision,
	)
	return &next, nil
}

// MarkDone completes a task from the actor's side: the assignee of an admin-assigned
// task confirms their half, the assigner confirms theirs, everyone else completes outright.
func (s *TaskService) MarkDone(ctx context.Context, actor Actor, taskID uint) (*model.Task, error) {
	task, err := s.loadActive(ctx, taskID)
	if err != nil {
		return nil, err
	}
	rel := RelationOf(actor, task)
	var patch TaskPatch
	switch {
	case rel.restrictedAssignee():
		patch.UserCompleted = Some(true)
	case rel.IsAdminAssigned && rel.IsOwner:
		patch.AdminCompleted = Some(true)
	default:
		patch.IsCompleted = Some(true)
	}
	rev := task.Revision
	patch.Revision = &rev
	return s.Update(ctx, actor, taskID, patch)
}

// deriveCompletion keeps IsCompleted and CompletedAt consistent.
// Admin-assigned tasks are complete exactly when both flags are set; an explicit
// isCompleted that disagrees is rejected. Self-assigned tasks follow the explicit flag.
func deriveCompletion(task *model.Task, wasCompleted bool, explicit Field[bool], clock Clock) error {
	if task.IsAdminAssigned() {
		derived := task.DualCompleted()
		if explicit.Set && explicit.Value != derived {
			if explicit.Value {
				return invalidf("isCompleted can only be true once both userCompleted and adminCompleted are true")
			}
			return invalidf("isCompleted cannot be false while userCompleted and adminCompleted are both true")
		}
		task.IsCompleted = derived
	} else if explicit.Set {
		task.IsCompleted = explicit.Value
	}

	switch {
	case task.IsCompleted && !wasCompleted:
		now := clock.Now()
		task.CompletedAt = &now
	case !task.IsCompleted:
		task.CompletedAt = nil
	case task.CompletedAt == nil:
		now := clock.Now()
		task.CompletedAt = &now
	}
	return nil
}

// reassign moves task to assigneeID. Only the owner reaches here; Authorize
// keeps restricted assignees away from assignedTo.
func (s *TaskService) reassign(ctx context.Context, actor Actor, task *model.Task, assigneeID uint) error {
	if assigneeID == task.UserID {
		task.AssignedToID = assigneeID
		task.AssignedByID = nil
		task.UserCompleted = false
		task.AdminCompleted = false
		return nil
	}
	if err := s.checkAssignee(ctx, actor, assigneeID); err != nil {
		return err
	}
	owner := task.UserID
	task.AssignedToID = assigneeID
	task.AssignedByID = &owner
	task.UserCompleted = false
	task.AdminCompleted = false
	return nil
}

// checkAssignee verifies actor may hand a task to assigneeID.
func (s *TaskService) checkAssignee(ctx context.Context, actor Actor, assigneeID uint) error {
	if !actor.IsAdmin() {
		return forbiddenf("only admins can assign tasks to other users")
	}
	assignee, err := s.users.FindByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("user %d not found", assigneeID)
		}
		return err
	}
	if assignee.Role != model.RoleUser || assignee.AdminID == nil || *assignee.AdminID != actor.ID {
		return forbiddenf("user %d is not registered under you", assigneeID)
	}
	return nil
}

// loadActive returns a task that exists and is not in the trash.
func (s *TaskService) loadActive(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("task %d not found", taskID)
		}
		return nil, err
	}
	if task.TrashState() == model.Trashed {
		return nil, notFoundf("task %d not found", taskID)
	}
	return task, nil
}

func (s *TaskService) save(ctx context.Context, task *model.Task) error {
	if err := s.tasks.Save(ctx, task); err != nil {
		if errors.Is(err, repository.ErrStaleRevision) {
			return conflictf("task %d was modified concurrently, reload and retry", task.ID)
		}
		return err
	}
	return nil
}
