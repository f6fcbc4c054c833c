package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, RunMigrations(db, &MigrationConfig{MaxRetries: 1}))
	return db
}

func createUser(t *testing.T, store UserStore, username string, role models.Role) models.User {
	t.Helper()
	user := models.User{Username: username, Email: username + "@example.com", Password: "x", Role: role}
	require.NoError(t, store.Create(context.Background(), &user))
	return user
}

func TestTaskStore_CRUD(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserStore(db)
	tasks := NewTaskStore(db)

	manager := createUser(t, users, "mgr", models.RoleManager)
	employee := createUser(t, users, "emp", models.RoleEmployee)

	assignee := employee.ID
	task := models.Task{Title: "Write docs", CreatedByID: manager.ID, AssignedToID: &assignee, Status: models.StatusAssigned}
	require.NoError(t, tasks.Create(ctx, &task))
	require.NotEqual(t, uuid.Nil, task.ID)
	require.NotNil(t, task.CreatedBy)
	assert.Equal(t, "mgr", task.CreatedBy.Username)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, "emp", task.AssignedTo.Username)

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write docs", got.Title)
	assert.Equal(t, 0, got.CompletionPercentage)

	updated, err := tasks.Update(ctx, task.ID, map[string]interface{}{
		"completion_percentage": 60,
		"status":                models.StatusOngoing,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, updated.CompletionPercentage)
	assert.Equal(t, models.StatusOngoing, updated.Status)
	assert.Equal(t, "Write docs", updated.Title)

	updated, err = tasks.Update(ctx, task.ID, map[string]interface{}{"assigned_to_id": nil})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedToID)

	require.NoError(t, tasks.Delete(ctx, task.ID))
	_, err = tasks.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, tasks.Delete(ctx, task.ID), ErrNotFound)

	_, err = tasks.Update(ctx, task.ID, map[string]interface{}{"title": "gone"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskStore_ListScopes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserStore(db)
	tasks := NewTaskStore(db)

	manager := createUser(t, users, "mgr", models.RoleManager)
	e := createUser(t, users, "e", models.RoleEmployee)
	other := createUser(t, users, "other", models.RoleEmployee)

	mk := func(title string, creator models.User, assignee *models.User, status models.TaskStatus) models.Task {
		task := models.Task{Title: title, CreatedByID: creator.ID, Status: status}
		if assignee != nil {
			id := assignee.ID
			task.AssignedToID = &id
		}
		require.NoError(t, tasks.Create(ctx, &task))
		return task
	}

	mk("assigned to e", manager, &e, models.StatusAssigned)
	mk("created by e", e, &other, models.StatusOngoing)
	mk("unrelated", manager, &other, models.StatusCompleted)
	mk("unassigned", manager, nil, models.StatusCreated)

	all, err := tasks.List(ctx, policy.TaskScopeFor(manager), TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	visible, err := tasks.List(ctx, policy.TaskScopeFor(e), TaskFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"assigned to e", "created by e"}, titles(visible))

	mine, err := tasks.List(ctx, policy.MyTasksScope(e), TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"assigned to e"}, titles(mine))

	ongoing := models.StatusOngoing
	filtered, err := tasks.List(ctx, policy.TaskScopeFor(e), TaskFilter{Status: &ongoing})
	require.NoError(t, err)
	assert.Equal(t, []string{"created by e"}, titles(filtered))

	// A filter can narrow but never widen the scope.
	otherID := other.ID
	filtered, err = tasks.List(ctx, policy.TaskScopeFor(e), TaskFilter{AssignedTo: &otherID})
	require.NoError(t, err)
	assert.Equal(t, []string{"created by e"}, titles(filtered))

	for _, task := range visible {
		assert.True(t, policy.TaskScopeFor(e).Matches(task))
	}
}

func TestReportStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserStore(db)
	tasks := NewTaskStore(db)
	reports := NewReportStore(db)

	manager := createUser(t, users, "mgr", models.RoleManager)
	e := createUser(t, users, "e", models.RoleEmployee)

	task := models.Task{Title: "t", CreatedByID: manager.ID}
	require.NoError(t, tasks.Create(ctx, &task))

	byE := models.Report{TaskID: task.ID, ReportedByID: e.ID, Content: "progress"}
	require.NoError(t, reports.Create(ctx, &byE))
	require.NotNil(t, byE.ReportedBy)
	assert.Equal(t, "e", byE.ReportedBy.Username)

	byM := models.Report{TaskID: task.ID, ReportedByID: manager.ID, Content: "review"}
	require.NoError(t, reports.Create(ctx, &byM))

	all, err := reports.List(ctx, policy.ReportScopeFor(manager), ReportFilter{TaskID: &task.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := reports.List(ctx, policy.ReportScopeFor(e), ReportFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, byE.ID, own[0].ID)

	updated, err := reports.Update(ctx, byE.ID, map[string]interface{}{"content": "done"})
	require.NoError(t, err)
	assert.Equal(t, "done", updated.Content)

	require.NoError(t, reports.Delete(ctx, byM.ID))
	_, err = reports.GetByID(ctx, byM.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserStore(db)

	manager := createUser(t, users, "boss", models.RoleManager)
	createUser(t, users, "ann", models.RoleEmployee)
	createUser(t, users, "bob", models.RoleEmployee)

	got, err := users.GetByLogin(ctx, "boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, manager.ID, got.ID)
	assert.True(t, got.IsManager())

	got, err = users.GetByLogin(ctx, "Boss@Example.COM")
	require.NoError(t, err, "email lookup ignores case")
	assert.Equal(t, manager.ID, got.ID)

	_, err = users.GetByLogin(ctx, "BOSS")
	assert.ErrorIs(t, err, ErrNotFound, "usernames are case-sensitive")

	exists, err := users.Exists(ctx, "username", "ann")
	require.NoError(t, err)
	assert.True(t, exists)

	role := models.RoleEmployee
	employees, err := users.List(ctx, &role)
	require.NoError(t, err)
	assert.Len(t, employees, 2)

	_, err = users.GetByID(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserStore(db)
	tokens := NewTokenStore(db)

	user := createUser(t, users, "ann", models.RoleEmployee)
	jti := uuid.Must(uuid.NewV4())

	require.NoError(t, tokens.Create(ctx, &models.Token{UserID: user.ID, JTI: jti, ExpiresAt: time.Now().UTC().Add(time.Hour)}))

	ok, err := tokens.Consume(ctx, user.ID, jti)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tokens.Consume(ctx, user.ID, jti)
	require.NoError(t, err)
	assert.False(t, ok, "a refresh token can only be used once")
}

func titles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}
