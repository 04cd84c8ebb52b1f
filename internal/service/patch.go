package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskboard/internal/model"
)

// Patch keys, named as they appear on the wire.
const (
	FieldTitle                 = "title"
	FieldDescription           = "description"
	FieldDueDate               = "dueDate"
	FieldPriority              = "priority"
	FieldCategory              = "category"
	FieldIsCompleted           = "isCompleted"
	FieldUserCompleted         = "userCompleted"
	FieldAdminCompleted        = "adminCompleted"
	FieldSubtasks              = "subtasks"
	FieldRecurrenceType        = "recurrenceType"
	FieldRecurrenceInterval    = "recurrenceInterval"
	FieldReminderMinutesBefore = "reminderMinutesBefore"
	FieldAssignedTo            = "assignedTo"
)

// Field is an optional patch value. Set is true when the key was present,
// Null when it was present with a JSON null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a set, non-null field.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// Timestamp accepts RFC 3339 timestamps as well as bare YYYY-MM-DD dates.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses s with the accepted layouts and returns it in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

// TaskPatch is a partial update. Only fields with Set are applied.
type TaskPatch struct {
	Title                 Field[string]               `json:"title"`
	Description           Field[string]               `json:"description"`
	DueDate               Field[Timestamp]            `json:"dueDate"`
	Priority              Field[model.Priority]       `json:"priority"`
	Category              Field[string]               `json:"category"`
	IsCompleted           Field[bool]                 `json:"isCompleted"`
	UserCompleted         Field[bool]                 `json:"userCompleted"`
	AdminCompleted        Field[bool]                 `json:"adminCompleted"`
	Subtasks              Field[[]model.Subtask]      `json:"subtasks"`
	RecurrenceType        Field[model.RecurrenceType] `json:"recurrenceType"`
	RecurrenceInterval    Field[int]                  `json:"recurrenceInterval"`
	ReminderMinutesBefore Field[int]                  `json:"reminderMinutesBefore"`
	AssignedTo            Field[uint]                 `json:"assignedTo"`

	// Revision, when present, must equal the stored revision.
	Revision *uint `json:"revision,omitempty"`
}

// Fields returns the wire names of the keys present in the patch, sorted.
func (p *TaskPatch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Title.Set, FieldTitle)
	add(p.Description.Set, FieldDescription)
	add(p.DueDate.Set, FieldDueDate)
	add(p.Priority.Set, FieldPriority)
	add(p.Category.Set, FieldCategory)
	add(p.IsCompleted.Set, FieldIsCompleted)
	add(p.UserCompleted.Set, FieldUserCompleted)
	add(p.AdminCompleted.Set, FieldAdminCompleted)
	add(p.Subtasks.Set, FieldSubtasks)
	add(p.RecurrenceType.Set, FieldRecurrenceType)
	add(p.RecurrenceInterval.Set, FieldRecurrenceInterval)
	add(p.ReminderMinutesBefore.Set, FieldReminderMinutesBefore)
	add(p.AssignedTo.Set, FieldAssignedTo)
	sort.Strings(fields)
	return fields
}

// Validate checks every present field without touching any task.
func (p *TaskPatch) Validate() error {
	nulls := []struct {
		name string
		null bool
	}{
		{FieldTitle, p.Title.Null},
		{FieldPriority, p.Priority.Null},
		{FieldIsCompleted, p.IsCompleted.Null},
		{FieldUserCompleted, p.UserCompleted.Null},
		{FieldAdminCompleted, p.AdminCompleted.Null},
		{FieldRecurrenceType, p.RecurrenceType.Null},
		{FieldRecurrenceInterval, p.RecurrenceInterval.Null},
		{FieldAssignedTo, p.AssignedTo.Null},
	}
	for _, n := range nulls {
		if n.null {
			return invalidf("%s cannot be null", n.name)
		}
	}

	if p.Title.Set && strings.TrimSpace(p.Title.Value) == "" {
		return invalidf("if provided, title cannot be empty")
	}
	if p.Priority.Set && !p.Priority.Value.Valid() {
		return invalidf("priority must be Low, Medium, or High")
	}
	if p.RecurrenceType.Set && !p.RecurrenceType.Value.Valid() {
		return invalidf("recurrence type must be none, daily, weekly, monthly, or custom")
	}
	if p.RecurrenceInterval.Set && p.RecurrenceInterval.Value < 1 {
		return invalidf("recurrence interval must be a positive integer")
	}
	if p.ReminderMinutesBefore.Set && !p.ReminderMinutesBefore.Null && p.ReminderMinutesBefore.Value < 0 {
		return invalidf("reminder minutes before must be a non-negative integer")
	}
	if p.Subtasks.Set {
		if err := validateSubtasks(p.Subtasks.Value); err != nil {
			return err
		}
	}
	return nil
}

func validateSubtasks(subtasks []model.Subtask) error {
	for i, st := range subtasks {
		if strings.TrimSpace(st.Title) == "" {
			return invalidf("subtask %d must have a title", i)
		}
	}
	return nil
}

// apply copies the patch onto task. Completion is derived separately.
func (p *TaskPatch) apply(task *model.Task) {
	if p.Title.Set {
		task.Title = strings.TrimSpace(p.Title.Value)
	}
	if p.Description.Set {
		task.Description = p.Description.Value
	}
	if p.DueDate.Set {
		if p.DueDate.Null {
			task.DueDate = nil
		} else {
			due := p.DueDate.Value.Time
			task.DueDate = &due
		}
		task.ReminderSentAt = nil
	}
	if p.Priority.Set {
		task.Priority = p.Priority.Value
	}
	if p.Category.Set {
		task.Category = strings.TrimSpace(p.Category.Value)
	}
	if p.Subtasks.Set {
		task.Subtasks = append([]model.Subtask{}, p.Subtasks.Value...)
	}
	if p.RecurrenceType.Set {
		task.RecurrenceType = p.RecurrenceType.Value
		task.LastRecurrenceDate = nil
	}
	if p.RecurrenceInterval.Set {
		task.RecurrenceInterval = p.RecurrenceInterval.Value
	}
	if p.ReminderMinutesBefore.Set {
		if p.ReminderMinutesBefore.Null {
			task.ReminderMinutesBefore = nil
		} else {
			minutes := p.ReminderMinutesBefore.Value
			task.ReminderMinutesBefore = &minutes
		}
		task.ReminderSentAt = nil
	}
	if p.UserCompleted.Set {
		task.UserCompleted = p.UserCompleted.Value
	}
	if p.AdminCompleted.Set {
		task.AdminCompleted = p.AdminCompleted.Value
	}
}
