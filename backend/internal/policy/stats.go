package policy

import "task-tracker/backend/internal/models"

type DashboardStats struct {
	Total     int64  `json:"total"`
	Created   int64  `json:"created"`
	Assigned  int64  `json:"assigned"`
	Ongoing   int64  `json:"ongoing"`
	Completed int64  `json:"completed"`
	MyTasks   *int64 `json:"my_tasks,omitempty"`
}

// ComputeDashboardStats counts the tasks visible to actor by status. Tasks
// outside the actor's scope are ignored, so callers may pass a wider set.
// Non-managers also get my_tasks: visible tasks assigned to them.
func ComputeDashboardStats(actor models.User, tasks []models.Task) DashboardStats {
	var stats DashboardStats
	var mine int64

	visible := TaskScopeFor(actor)
	assigned := MyTasksScope(actor)
	for _, t := range tasks {
		if !visible.Matches(t) {
			continue
		}
		stats.Total++
		switch t.Status {
		case models.StatusCreated:
			stats.Created++
		case models.StatusAssigned:
			stats.Assigned++
		case models.StatusOngoing:
			stats.Ongoing++
		case models.StatusCompleted:
			stats.Completed++
		}
		if assigned.Matches(t) {
			mine++
		}
	}

	if !actor.IsManager() {
		stats.MyTasks = &mine
	}
	return stats
}
