package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// ImportCategory is the default category for imported rows.
const ImportCategory = "Work"

// UserRef identifies a user by numeric id or by email.
type UserRef string

func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = UserRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("assignedTo must be a user id or email")
	}
	*r = UserRef(n.String())
	return nil
}

func (r *UserRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("assignedTo must be a user id or email")
	}
	*r = UserRef(strings.TrimSpace(node.Value))
	return nil
}

// ImportRow is one task in a bulk upload.
type ImportRow struct {
	Title                 string          `json:"title" yaml:"title"`
	AssignedTo            UserRef         `json:"assignedTo" yaml:"assignedTo"`
	DueDate               string          `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	Description           string          `json:"description,omitempty" yaml:"description,omitempty"`
	Priority              string          `json:"priority,omitempty" yaml:"priority,omitempty"`
	Category              string          `json:"category,omitempty" yaml:"category,omitempty"`
	Subtasks              []model.Subtask `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	RecurrenceType        string          `json:"recurrenceType,omitempty" yaml:"recurrenceType,omitempty"`
	RecurrenceInterval    int             `json:"recurrenceInterval,omitempty" yaml:"recurrenceInterval,omitempty"`
	ReminderMinutesBefore *int            `json:"reminderMinutesBefore,omitempty" yaml:"reminderMinutesBefore,omitempty"`
}

// ImportFailure explains why a row was not created. Row is zero-based.
type ImportFailure struct {
	Row        int    `json:"row"`
	Title      string `json:"title"`
	AssignedTo string `json:"assignedTo"`
	Error      string `json:"error"`
}

type ImportResult struct {
	CreatedCount int             `json:"createdCount"`
	FailedCount  int             `json:"failedCount"`
	Created      []model.Task    `json:"created"`
	Failed       []ImportFailure `json:"failed"`
}

// ImportService creates admin-assigned tasks in bulk with per-row results.
type ImportService struct {
	tasks  *repository.TaskRepository
	users  *repository.UserRepository
	logger *slog.Logger
}

func NewImportService(tasks *repository.TaskRepository, users *repository.UserRepository, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ImportService{tasks: tasks, users: users, logger: logger}
}

// Import validates and creates each row independently. Only a non-admin caller
// or an empty list fails the whole request.
func (s *ImportService) Import(ctx context.Context, actor Actor, rows []ImportRow) (*ImportResult, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenf("only admins can bulk upload tasks")
	}
	if len(rows) == 0 {
		return nil, invalidf("no tasks to import")
	}

	result := &ImportResult{
		Created: []model.Task{},
		Failed:  []ImportFailure{},
	}
	assignees := make(map[UserRef]*model.User)

	for i, row := range rows {
		task, err := s.buildTask(ctx, actor, row, assignees)
		if err == nil {
			err = s.tasks.Create(ctx, task)
			if err != nil && Kind(err) == "internal" {
				s.logger.Error("import row", "row", i, "err", err)
			}
		}
		if err != nil {
			result.Failed = append(result.Failed, ImportFailure{
				Row:        i,
				Title:      row.Title,
				AssignedTo: string(row.AssignedTo),
				Error:      rowError(err),
			})
			continue
		}
		result.Created = append(result.Created, *task)
	}

	result.CreatedCount = len(result.Created)
	result.FailedCount = len(result.Failed)
	s.logger.Info("bulk import finished",
		"admin", actor.ID,
		"created", result.CreatedCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

func (s *ImportService) buildTask(ctx context.Context, actor Actor, row ImportRow, cache map[UserRef]*model.User) (*model.Task, error) {
	title := strings.TrimSpace(row.Title)
	if title == "" || row.AssignedTo == "" {
		return nil, invalidf("title and assignedTo are required")
	}

	assignee, ok := cache[row.AssignedTo]
	if !ok {
		var err error
		assignee, err = s.resolveUser(ctx, row.AssignedTo)
		if err != nil {
			return nil, err
		}
		cache[row.AssignedTo] = assignee
	}
	if assignee.Role != model.RoleUser || assignee.AdminID == nil || *assignee.AdminID != actor.ID {
		return nil, forbiddenf("user %s is not registered under you", row.AssignedTo)
	}

	admin := actor.ID
	task := &model.Task{
		UserID:             actor.ID,
		AssignedToID:       assignee.ID,
		AssignedByID:       &admin,
		Title:              title,
		Description:        strings.TrimSpace(row.Description),
		Priority:           model.Priority(strings.TrimSpace(row.Priority)),
		Category:           strings.TrimSpace(row.Category),
		Subtasks:           append([]model.Subtask{}, row.Subtasks...),
		RecurrenceType:     model.RecurrenceType(strings.ToLower(strings.TrimSpace(row.RecurrenceType))),
		RecurrenceInterval: row.RecurrenceInterval,
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if !task.Priority.Valid() {
		return nil, invalidf("priority must be Low, Medium, or High")
	}
	if task.Category == "" {
		task.Category = ImportCategory
	}
	if task.RecurrenceType == "" {
		task.RecurrenceType = model.RecurNone
	}
	if !task.RecurrenceType.Valid() {
		return nil, invalidf("recurrence type must be none, daily, weekly, monthly, or custom")
	}
	switch {
	case task.RecurrenceInterval == 0:
		task.RecurrenceInterval = 1
	case task.RecurrenceInterval < 0:
		return nil, invalidf("recurrence interval must be a positive integer")
	}
	if row.ReminderMinutesBefore != nil {
		if *row.ReminderMinutesBefore < 0 {
			return nil, invalidf("reminder minutes before must be a non-negative integer")
		}
		minutes := *row.ReminderMinutesBefore
		task.ReminderMinutesBefore = &minutes
	}
	if err := validateSubtasks(task.Subtasks); err != nil {
		return nil, err
	}
	if due := strings.TrimSpace(row.DueDate); due != "" {
		parsed, err := ParseTimestamp(due)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		task.DueDate = &parsed
	}
	return task, nil
}

func (s *ImportService) resolveUser(ctx context.Context, ref UserRef) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if id, convErr := strconv.ParseUint(string(ref), 10, 64); convErr == nil {
		user, err = s.users.FindByID(ctx, uint(id))
	} else {
		user, err = s.users.FindByEmail(ctx, strings.ToLower(string(ref)))
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("user %s not found", ref)
		}
		return nil, err
	}
	return user, nil
}

// rowError strips the kind prefix so per-row reasons read naturally.
func rowError(err error) string {
	msg := err.Error()
	for _, kind := range []error{ErrValidation, ErrForbidden, ErrNotFound, ErrConflict} {
		if prefix := kind.Error() + ": "; strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}
