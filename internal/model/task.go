package model

import "time"

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// RecurrenceType controls how NextDueDate advances a recurring task.
type RecurrenceType string

const (
	RecurNone    RecurrenceType = "none"
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
	RecurCustom  RecurrenceType = "custom"
)

func (r RecurrenceType) Valid() bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly, RecurCustom:
		return true
	}
	return false
}

// Subtask is an embedded checklist item; subtasks are not separate rows.
type Subtask struct {
	Title     string `json:"title" yaml:"title"`
	Completed bool   `json:"completed" yaml:"completed"`
}

// TrashState is derived from DeletedAt.
type TrashState int

const (
	Active TrashState = iota
	Trashed
)

func (s TrashState) String() string {
	if s == Trashed {
		return "trashed"
	}
	return "active"
}

// Task is a unit of work owned by UserID and assigned to AssignedToID.
// AssignedByID is set only when the owner assigned the task to someone else.
type Task struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	UserID                uint           `gorm:"index;not null" json:"user"`
	AssignedToID          uint           `gorm:"index;not null" json:"assignedTo"`
	AssignedByID          *uint          `gorm:"index" json:"assignedBy"`
	UserCompleted         bool           `gorm:"not null;default:false" json:"userCompleted"`
	AdminCompleted        bool           `gorm:"not null;default:false" json:"adminCompleted"`
	IsCompleted           bool           `gorm:"index;not null;default:false" json:"isCompleted"`
	CompletedAt           *time.Time     `json:"completedAt"`
	Title                 string         `gorm:"not null" json:"title"`
	Description           string         `json:"description"`
	DueDate               *time.Time     `gorm:"index" json:"dueDate"`
	Priority              Priority       `gorm:"not null;default:Medium" json:"priority"`
	Category              string         `gorm:"index" json:"category"`
	Subtasks              []Subtask      `gorm:"serializer:json" json:"subtasks"`
	RecurrenceType        RecurrenceType `gorm:"not null;default:none" json:"recurrenceType"`
	RecurrenceInterval    int            `gorm:"not null;default:1" json:"recurrenceInterval"`
	LastRecurrenceDate    *time.Time     `json:"lastRecurrenceDate"`
	ReminderMinutesBefore *int           `json:"reminderMinutesBefore"`
	ReminderSentAt        *time.Time     `json:"-"`
	DeletedAt             *time.Time     `gorm:"index" json:"deletedAt"`
	Revision              uint           `gorm:"not null;default:1" json:"revision"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// IsAdminAssigned reports whether completion needs both the assignee and the assigner.
func (t *Task) IsAdminAssigned() bool {
	return t.AssignedByID != nil
}

// DualCompleted reports whether both sides of an admin-assigned task signed off.
func (t *Task) DualCompleted() bool {
	return t.UserCompleted && t.AdminCompleted
}

func (t *Task) TrashState() TrashState {
	if t.DeletedAt != nil {
		return Trashed
	}
	return Active
}

func (t *Task) IsRecurring() bool {
	return t.RecurrenceType != "" && t.RecurrenceType != RecurNone
}
