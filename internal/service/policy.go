package service

import (
	"strings"

	"taskboard/internal/model"
)

// Actor is the authenticated caller, as supplied by the identity collaborator.
type Actor struct {
	ID   uint
	Role model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// Action is a mutation checked by Authorize.
type Action int

const (
	ActionUpdate Action = iota
	ActionDelete
	ActionRestore
	ActionPurge
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionRestore:
		return "restore"
	case ActionPurge:
		return "purge"
	}
	return "unknown"
}

// Relation describes how an actor relates to a task. It is computed per request.
type Relation struct {
	IsOwner         bool
	IsAssignee      bool
	IsAdminAssigned bool
}

func RelationOf(actor Actor, task *model.Task) Relation {
	return Relation{
		IsOwner:         task.UserID == actor.ID,
		IsAssignee:      task.AssignedToID == actor.ID,
		IsAdminAssigned: task.IsAdminAssigned(),
	}
}

// restrictedAssignee reports whether the actor is the non-owner assignee of an admin-assigned task.
func (r Relation) restrictedAssignee() bool {
	return r.IsAdminAssigned && r.IsAssignee && !r.IsOwner
}

// Fields an assignee may change on a task somebody else assigned to them.
var assigneeFields = map[string]bool{
	FieldSubtasks:      true,
	FieldUserCompleted: true,
}

// Authorize decides whether actor may perform action on task. fields is the set of
// patch keys for ActionUpdate and is ignored otherwise; with no fields, ActionUpdate
// checks owner-or-assignee access only. A nil result means allowed; otherwise the
// error wraps ErrForbidden.
func Authorize(actor Actor, task *model.Task, action Action, fields []string) error {
	rel := RelationOf(actor, task)

	switch action {
	case ActionRestore, ActionPurge:
		if !rel.IsOwner {
			return forbiddenf("only the task owner can %s it", action)
		}
		return nil
	}

	if !rel.IsOwner && !rel.IsAssignee {
		return forbiddenf("not authorized")
	}

	switch action {
	case ActionUpdate:
		if rel.restrictedAssignee() {
			var denied []string
			for _, f := range fields {
				if !assigneeFields[f] {
					denied = append(denied, f)
				}
			}
			if len(denied) > 0 {
				return forbiddenf("you can only update subtasks or mark complete for this task (denied: %s)", strings.Join(denied, ", "))
			}
		}
	case ActionDelete:
		if rel.restrictedAssignee() && !task.DualCompleted() {
			return forbiddenf("waiting for dual completion: both user and admin must mark the task complete")
		}
	}
	return nil
}

// CanView reports whether actor may read task.
func CanView(actor Actor, task *model.Task) bool {
	if task.UserID == actor.ID || task.AssignedToID == actor.ID {
		return true
	}
	return task.AssignedByID != nil && *task.AssignedByID == actor.ID
}
