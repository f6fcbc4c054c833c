package policy

import (
	"github.com/gofrs/uuid"

	"task-tracker/backend/internal/models"
)

// TaskScope is a visibility predicate over tasks. Stores translate it into a
// query; Matches evaluates it in memory.
type TaskScope struct {
	All          bool
	UserID       uuid.UUID
	AssignedOnly bool
}

// TaskScopeFor returns what actor may read: managers see everything,
// employees see tasks assigned to them or created by them.
func TaskScopeFor(actor models.User) TaskScope {
	if actor.IsManager() {
		return TaskScope{All: true}
	}
	return TaskScope{UserID: actor.ID}
}

// MyTasksScope selects tasks assigned to actor, ignoring who created them.
func MyTasksScope(actor models.User) TaskScope {
	return TaskScope{UserID: actor.ID, AssignedOnly: true}
}

func (s TaskScope) Matches(task models.Task) bool {
	if s.All {
		return true
	}
	if task.IsAssignedTo(s.UserID) {
		return true
	}
	return !s.AssignedOnly && task.IsCreatedBy(s.UserID)
}

type ReportScope struct {
	All        bool
	ReportedBy uuid.UUID
}

// ReportScopeFor: managers see every report, employees only their own.
func ReportScopeFor(actor models.User) ReportScope {
	if actor.IsManager() {
		return ReportScope{All: true}
	}
	return ReportScope{ReportedBy: actor.ID}
}

// MyReportsScope selects reports authored by actor, whatever the role.
func MyReportsScope(actor models.User) ReportScope {
	return ReportScope{ReportedBy: actor.ID}
}

func (s ReportScope) Matches(report models.Report) bool {
	return s.All || report.ReportedByID == s.ReportedBy
}

// FilterTasks keeps the tasks matching scope.
func FilterTasks(scope TaskScope, tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if scope.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
