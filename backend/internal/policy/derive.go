package policy

import "task-tracker/backend/internal/models"

// DeriveStatusFromPercentage returns the status a task should have after its
// completion percentage is set to p. Status only ever moves forward here:
// 100 means completed, any progress moves a not-yet-started task to ongoing,
// and everything else is left alone.
//
// The coupling is one-way. Setting a status directly never touches the
// percentage, so a task can be completed at 40% or ongoing at 100%.
func DeriveStatusFromPercentage(current models.TaskStatus, p int) models.TaskStatus {
	switch {
	case p == 100 && current != models.StatusCompleted:
		return models.StatusCompleted
	case p > 0 && (current == models.StatusCreated || current == models.StatusAssigned):
		return models.StatusOngoing
	default:
		return current
	}
}
