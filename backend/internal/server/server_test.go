package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/repositories"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Redis.Enabled = false
	cfg.RateLimit.RequestsPerMin = 60000
	cfg.RateLimit.BurstSize = 1000
	return cfg
}

func newTestApp(t *testing.T, redisClient *redis.Client) *Application {
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
	require.NoError(t, repositories.RunMigrations(db, &repositories.MigrationConfig{MaxRetries: 1}))

	app := NewWithDB(testConfig(), zerolog.Nop(), db, redisClient)
	t.Cleanup(func() { app.Cache.Close() })
	return app
}

func do(app *Application, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type account struct {
	id      string
	access  string
	refresh string
}

func register(t *testing.T, app *Application, username, role string) account {
	t.Helper()
	w := do(app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":   username,
		"email":      username + "@example.com",
		"password":   "password123",
		"first_name": username,
		"last_name":  "Test",
		"role":       role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	user := body["user"].(map[string]interface{})
	tokens := body["tokens"].(map[string]interface{})
	return account{
		id:      user["id"].(string),
		access:  tokens["access"].(string),
		refresh: tokens["refresh"].(string),
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, nil)

	w := do(app, http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(app, http.MethodGet, "/api/v1/tasks", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMonitoringRoutes(t *testing.T) {
	app := newTestApp(t, nil)

	assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/metrics", "", nil).Code)
}

func TestTaskLifecycle(t *testing.T) {
	app := newTestApp(t, nil)
	boss := register(t, app, "boss", "manager")
	alice := register(t, app, "alice", "employee")
	bob := register(t, app, "bob", "employee")

	w := do(app, http.MethodPost, "/api/v1/tasks", alice.access, map[string]interface{}{"title": "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(app, http.MethodPost, "/api/v1/tasks", boss.access, map[string]interface{}{"title": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title", decode(t, w)["field"])

	w = do(app, http.MethodPost, "/api/v1/tasks", boss.access, map[string]interface{}{
		"title":       "Write docs",
		"assigned_to": alice.id,
		"due_date":    "2030-01-02",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode(t, w)
	taskID := task["id"].(string)
	assert.Equal(t, "created", task["status"])
	assert.Equal(t, boss.id, task["created_by"])
	assert.Equal(t, "alice Test", task["assigned_to_name"])

	// visibility
	assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/api/v1/tasks/"+taskID, alice.access, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(app, http.MethodGet, "/api/v1/tasks/"+taskID, bob.access, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(app, http.MethodGet, "/api/v1/tasks/garbage", boss.access, nil).Code)

	var listed []map[string]interface{}
	w = do(app, http.MethodGet, "/api/v1/tasks", bob.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed)

	// assignee edits
	w = do(app, http.MethodPatch, "/api/v1/tasks/"+taskID, alice.access, map[string]interface{}{"title": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(app, http.MethodPatch, "/api/v1/tasks/"+taskID, alice.access, map[string]interface{}{
		"status":                "ongoing",
		"completion_percentage": 10,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(app, http.MethodPatch, "/api/v1/tasks/"+taskID+"/completion", alice.access, map[string]interface{}{"completion_percentage": "50"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	task = decode(t, w)
	assert.Equal(t, float64(50), task["completion_percentage"])
	assert.Equal(t, "ongoing", task["status"])

	w = do(app, http.MethodPatch, "/api/v1/tasks/"+taskID+"/completion", alice.access, map[string]interface{}{"completion_percentage": 101})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "completion_percentage", decode(t, w)["field"])

	w = do(app, http.MethodPatch, "/api/v1/tasks/"+taskID+"/status", bob.access, map[string]interface{}{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(app, http.MethodPatch, "/api/v1/tasks/"+taskID+"/status", alice.access, map[string]interface{}{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)
	task = decode(t, w)
	assert.Equal(t, "completed", task["status"])
	assert.Equal(t, float64(50), task["completion_percentage"])

	// manager edits
	w = do(app, http.MethodPut, "/api/v1/tasks/"+taskID, boss.access, map[string]interface{}{
		"title":       "Write better docs",
		"assigned_to": nil,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	task = decode(t, w)
	assert.Equal(t, "Write better docs", task["title"])
	assert.Nil(t, task["assigned_to"])

	w = do(app, http.MethodPatch, "/api/v1/tasks/"+taskID, boss.access, map[string]interface{}{"assigned_to": boss.id})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "assigned_to", decode(t, w)["field"])

	w = do(app, http.MethodGet, "/api/v1/tasks/dashboard", boss.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(1), stats["total"])
	assert.Equal(t, float64(1), stats["completed"])

	assert.Equal(t, http.StatusForbidden, do(app, http.MethodDelete, "/api/v1/tasks/"+taskID, alice.access, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(app, http.MethodDelete, "/api/v1/tasks/"+taskID, boss.access, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(app, http.MethodGet, "/api/v1/tasks/"+taskID, boss.access, nil).Code)
}

func TestCompletionAcceptsWholeDecimals(t *testing.T) {
	app := newTestApp(t, nil)
	boss := register(t, app, "boss", "manager")
	alice := register(t, app, "alice", "employee")

	w := do(app, http.MethodPost, "/api/v1/tasks", boss.access, map[string]interface{}{"title": "Ship it", "assigned_to": alice.id})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	path := "/api/v1/tasks/" + decode(t, w)["id"].(string) + "/completion"

	// Raw bodies keep the number spelling a client sent.
	w = do(app, http.MethodPatch, path, alice.access, json.RawMessage(`{"completion_percentage": 50.0}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(50), decode(t, w)["completion_percentage"])

	w = do(app, http.MethodPatch, path, alice.access, json.RawMessage(`{"completion_percentage": 12.5}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "completion_percentage", decode(t, w)["field"])

	w = do(app, http.MethodPatch, path, alice.access, json.RawMessage(`{"completion_percentage": 1e2}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	task := decode(t, w)
	assert.Equal(t, float64(100), task["completion_percentage"])
	assert.Equal(t, "completed", task["status"])
}

func TestReportRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	boss := register(t, app, "boss", "manager")
	alice := register(t, app, "alice", "employee")
	bob := register(t, app, "bob", "employee")

	w := do(app, http.MethodPost, "/api/v1/tasks", boss.access, map[string]interface{}{
		"title":       "Audit",
		"assigned_to": alice.id,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	taskID := decode(t, w)["id"].(string)

	w = do(app, http.MethodPost, "/api/v1/reports", bob.access, map[string]interface{}{"task": taskID, "content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(app, http.MethodPost, "/api/v1/reports", alice.access, map[string]interface{}{"task": "4f1d7f3e-0000-4000-8000-000000000000", "content": "hi"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "task", decode(t, w)["field"])

	w = do(app, http.MethodPost, "/api/v1/reports", alice.access, map[string]interface{}{"task": taskID, "content": "Half way"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	report := decode(t, w)
	reportID := report["id"].(string)
	assert.Equal(t, alice.id, report["reported_by"])
	assert.Equal(t, "alice", report["reported_by_username"])

	assert.Equal(t, http.StatusNotFound, do(app, http.MethodGet, "/api/v1/reports/"+reportID, bob.access, nil).Code)
	assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/api/v1/reports/"+reportID, boss.access, nil).Code)

	var listed []map[string]interface{}
	w = do(app, http.MethodGet, "/api/v1/reports/task/"+taskID, boss.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	w = do(app, http.MethodPatch, "/api/v1/reports/"+reportID, alice.access, map[string]interface{}{"content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(app, http.MethodPatch, "/api/v1/reports/"+reportID, alice.access, map[string]interface{}{"content": "Done"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Done", decode(t, w)["content"])

	assert.Equal(t, http.StatusNoContent, do(app, http.MethodDelete, "/api/v1/reports/"+reportID, boss.access, nil).Code)
}

func TestAuthRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	alice := register(t, app, "alice", "employee")

	w := do(app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(app, http.MethodGet, "/api/v1/auth/me", alice.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["username"])

	w = do(app, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh": alice.refresh})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := decode(t, w)["refresh"].(string)

	w = do(app, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh": alice.refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(app, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refresh": rotated})
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(app, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh": rotated})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func keysWithPrefix(mr *miniredis.Miniredis, prefix string) []string {
	var out []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func TestCacheRoutesAreManagerOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	app := newTestApp(t, client)
	boss := register(t, app, "boss", "manager")
	alice := register(t, app, "alice", "employee")

	assert.Equal(t, http.StatusForbidden, do(app, http.MethodGet, "/api/v1/cache/stats", alice.access, nil).Code)

	// warm the dashboard entry, then drop it
	require.Equal(t, http.StatusOK, do(app, http.MethodGet, "/api/v1/tasks/dashboard", boss.access, nil).Code)
	assert.Len(t, keysWithPrefix(mr, "task-tracker:dashboard:"), 1)

	w := do(app, http.MethodPost, "/api/v1/cache/invalidate", boss.access, map[string]string{"pattern": "dashboard:*"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, keysWithPrefix(mr, "task-tracker:dashboard:"))

	assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/api/v1/cache/stats", boss.access, nil).Code)
}

func TestListUsersByRole(t *testing.T) {
	app := newTestApp(t, nil)
	boss := register(t, app, "boss", "manager")
	register(t, app, "alice", "employee")
	register(t, app, "bob", "employee")

	var users []map[string]interface{}
	w := do(app, http.MethodGet, "/api/v1/users?role=employee", boss.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Equal(t, "employee", u["role"])
		assert.Equal(t, false, u["is_manager"])
	}

	w = do(app, http.MethodGet, "/api/v1/users?role=admin", boss.access, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "role", decode(t, w)["field"])
}
