package policy

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-tracker/backend/internal/models"
)

func TestTaskScopeFor(t *testing.T) {
	m := newUser(models.RoleManager)
	e := newUser(models.RoleEmployee)
	other := newUser(models.RoleEmployee)

	assignedToE := assignedTask(m, e, models.StatusAssigned)
	createdByE := assignedTask(e, other, models.StatusAssigned)
	unrelated := assignedTask(m, other, models.StatusAssigned)
	unassigned := models.Task{ID: uuid.Must(uuid.NewV4()), CreatedByID: m.ID, Status: models.StatusCreated}
	all := []models.Task{assignedToE, createdByE, unrelated, unassigned}

	assert.Len(t, FilterTasks(TaskScopeFor(m), all), 4)

	visible := FilterTasks(TaskScopeFor(e), all)
	require.Len(t, visible, 2)
	assert.ElementsMatch(t, []uuid.UUID{assignedToE.ID, createdByE.ID}, []uuid.UUID{visible[0].ID, visible[1].ID})

	mine := FilterTasks(MyTasksScope(e), all)
	require.Len(t, mine, 1)
	assert.Equal(t, assignedToE.ID, mine[0].ID)
}

func TestTaskScopeIsIdempotentAndMonotonic(t *testing.T) {
	m := newUser(models.RoleManager)
	employees := []models.User{newUser(models.RoleEmployee), newUser(models.RoleEmployee), newUser(models.RoleEmployee)}

	var all []models.Task
	for _, a := range employees {
		for _, b := range employees {
			all = append(all, assignedTask(a, b, models.StatusOngoing))
		}
		all = append(all, assignedTask(m, a, models.StatusCreated))
	}

	managerView := FilterTasks(TaskScopeFor(m), all)
	assert.Equal(t, managerView, FilterTasks(TaskScopeFor(m), managerView))

	inManagerView := map[uuid.UUID]bool{}
	for _, task := range managerView {
		inManagerView[task.ID] = true
	}
	for _, e := range employees {
		view := FilterTasks(TaskScopeFor(e), all)
		assert.Equal(t, view, FilterTasks(TaskScopeFor(e), view))
		for _, task := range view {
			assert.True(t, inManagerView[task.ID])
			assert.True(t, task.IsAssignedTo(e.ID) || task.IsCreatedBy(e.ID))
		}
	}
}

func TestDashboardStatsScenario(t *testing.T) {
	m := newUser(models.RoleManager)
	e := newUser(models.RoleEmployee)
	other := newUser(models.RoleEmployee)

	created := models.Task{ID: uuid.Must(uuid.NewV4()), CreatedByID: e.ID, Status: models.StatusCreated}
	ongoing := assignedTask(e, other, models.StatusOngoing)
	completed := assignedTask(m, e, models.StatusCompleted)
	invisible := assignedTask(m, other, models.StatusAssigned)

	stats := ComputeDashboardStats(e, []models.Task{created, ongoing, completed, invisible})
	require.NotNil(t, stats.MyTasks)
	assert.Equal(t, DashboardStats{Total: 3, Created: 1, Assigned: 0, Ongoing: 1, Completed: 1, MyTasks: stats.MyTasks}, stats)
	assert.Equal(t, int64(1), *stats.MyTasks)

	managerStats := ComputeDashboardStats(m, []models.Task{created, ongoing, completed, invisible})
	assert.Equal(t, int64(4), managerStats.Total)
	assert.Equal(t, int64(1), managerStats.Assigned)
	assert.Nil(t, managerStats.MyTasks)
}

func TestReportRules(t *testing.T) {
	m := newUser(models.RoleManager)
	e := newUser(models.RoleEmployee)
	outsider := newUser(models.RoleEmployee)
	task := assignedTask(m, e, models.StatusOngoing)

	report, err := NewReport(e, task, "halfway there")
	require.NoError(t, err)
	assert.Equal(t, e.ID, report.ReportedByID)
	assert.Equal(t, task.ID, report.TaskID)

	_, err = NewReport(m, task, "looks good")
	assert.NoError(t, err)

	_, err = NewReport(outsider, task, "me too")
	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Contains(t, err.Error(), "must be assigned to the task or a manager")

	// The creator of a task is not automatically allowed to report on it.
	createdByOutsider := assignedTask(outsider, e, models.StatusOngoing)
	_, err = NewReport(outsider, createdByOutsider, "note")
	assert.True(t, IsForbidden(err))

	_, err = NewReport(e, task, "  ")
	assert.True(t, IsValidation(err))
}

func TestReportVisibilityAndModification(t *testing.T) {
	m := newUser(models.RoleManager)
	e := newUser(models.RoleEmployee)
	task := assignedTask(m, e, models.StatusOngoing)

	byEmployee := models.Report{ID: uuid.Must(uuid.NewV4()), TaskID: task.ID, ReportedByID: e.ID}
	byManager := models.Report{ID: uuid.Must(uuid.NewV4()), TaskID: task.ID, ReportedByID: m.ID}

	assert.NoError(t, CanReadReport(m, byEmployee))
	assert.NoError(t, CanReadReport(e, byEmployee))
	assert.True(t, IsForbidden(CanReadReport(e, byManager)))

	assert.NoError(t, CanModifyReport(e, task, byEmployee))
	assert.True(t, IsForbidden(CanModifyReport(e, task, byManager)))
	assert.NoError(t, CanModifyReport(m, task, byEmployee))

	assert.True(t, MyReportsScope(m).Matches(byManager))
	assert.False(t, MyReportsScope(m).Matches(byEmployee))
}

func TestFieldSetSubsetOf(t *testing.T) {
	assert.True(t, NewFieldSet().SubsetOf(FieldStatus))
	assert.True(t, NewFieldSet(FieldStatus).SubsetOf(FieldStatus))
	assert.False(t, NewFieldSet(FieldStatus, FieldTitle).SubsetOf(FieldStatus))
	assert.Equal(t, []Field{FieldAssignedTo, FieldTitle}, NewFieldSet(FieldTitle, FieldAssignedTo).Fields())
}
