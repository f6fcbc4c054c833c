package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestGin() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMetricsMiddleware(t *testing.T) {
	resetGlobalMetrics()

	router := setupTestGin()
	router.Use(MetricsMiddleware())
	router.GET("/tasks/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	router.GET("/error", func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{}) })

	for i := 0; i < 5; i++ {
		serve(router, "/tasks/"+string(rune('a'+i)))
	}
	serve(router, "/error")
	serve(router, "/nowhere")

	metrics := GetMetrics()
	assert.Equal(t, int64(7), metrics.RequestCount)
	assert.Zero(t, metrics.ActiveRequests)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Equal(t, int64(5), metrics.StatusCodes["OK"])
	assert.Equal(t, int64(1), metrics.StatusCodes["Internal Server Error"])
	assert.Equal(t, int64(1), metrics.StatusCodes["Not Found"])
	assert.Equal(t, int64(5), metrics.Endpoints["GET /tasks/:id"], "endpoints are keyed by route template")
	assert.Equal(t, int64(1), metrics.Endpoints["GET unmatched"])
	assert.False(t, metrics.LastRequest.IsZero())
}

func TestGetMetrics_ReturnsCopy(t *testing.T) {
	resetGlobalMetrics()

	snapshot := GetMetrics()
	snapshot.StatusCodes["OK"] = 99

	assert.Zero(t, GetMetrics().StatusCodes["OK"])
}

func TestMetrics_Concurrency(t *testing.T) {
	resetGlobalMetrics()

	router := setupTestGin()
	router.Use(MetricsMiddleware())
	router.GET("/test", func(c *gin.Context) {
		time.Sleep(10 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(router, "/test")
			_ = GetMetrics()
		}()
	}
	wg.Wait()

	metrics := GetMetrics()
	assert.Equal(t, int64(10), metrics.RequestCount)
	assert.Zero(t, metrics.ActiveRequests)
	assert.Greater(t, metrics.RequestDuration, time.Duration(0))
}

func TestGetSystemMetrics(t *testing.T) {
	metrics := GetSystemMetrics()

	assert.Positive(t, metrics.Uptime)
	assert.Positive(t, metrics.GoroutineCount)
	assert.Positive(t, metrics.CPUCount)
	assert.Equal(t, runtime.Version(), metrics.GoVersion)
}

func TestBToMb(t *testing.T) {
	assert.Equal(t, uint64(0), bToMb(0))
	assert.Equal(t, uint64(1), bToMb(1024*1024))
	assert.Equal(t, uint64(5), bToMb(5*1024*1024))
	assert.Equal(t, uint64(1024), bToMb(1024*1024*1024))
}

func TestRunHealthChecks(t *testing.T) {
	resetGlobalHealthChecker()

	RegisterHealthCheck("database", func(ctx context.Context) error { return nil })
	RegisterHealthCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	checks := RunHealthChecks()
	require.Len(t, checks, 2)
	assert.Equal(t, "database", checks["database"].Name)
	assert.Equal(t, StatusHealthy, checks["database"].Status)
	assert.Equal(t, StatusUnhealthy, checks["redis"].Status)
	assert.Equal(t, "connection refused", checks["redis"].Message)
	assert.False(t, checks["redis"].LastCheck.IsZero())
}

func TestRunHealthChecks_PassesDeadline(t *testing.T) {
	resetGlobalHealthChecker()

	RegisterHealthCheck("deadline", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})

	assert.Equal(t, StatusHealthy, RunHealthChecks()["deadline"].Status)
}

func TestMetricsHandler(t *testing.T) {
	resetGlobalMetrics()

	router := setupTestGin()
	router.GET("/metrics", MetricsHandler())

	w := serve(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Contains(t, body, "application")
	assert.Contains(t, body, "system")
	assert.Contains(t, body, "timestamp")
}

func TestMetricsHandler_Components(t *testing.T) {
	RegisterStatsProvider("cache", func() map[string]interface{} {
		return map[string]interface{}{"items": 3}
	})
	t.Cleanup(func() {
		statsProvidersMu.Lock()
		delete(statsProviders, "cache")
		statsProvidersMu.Unlock()
	})

	router := setupTestGin()
	router.GET("/metrics", MetricsHandler())

	body := decode(t, serve(router, "/metrics"))
	components := body["components"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"items": float64(3)}, components["cache"])
}

func TestHealthAndReadinessHandlers(t *testing.T) {
	tests := []struct {
		name       string
		check      HealthCheckFunc
		handler    gin.HandlerFunc
		wantCode   int
		wantStatus string
	}{
		{"health ok", func(context.Context) error { return nil }, HealthHandler(), http.StatusOK, "healthy"},
		{"health failing", func(context.Context) error { return errors.New("down") }, HealthHandler(), http.StatusServiceUnavailable, "unhealthy"},
		{"ready", func(context.Context) error { return nil }, ReadinessHandler(), http.StatusOK, "ready"},
		{"not ready", func(context.Context) error { return errors.New("down") }, ReadinessHandler(), http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobalHealthChecker()
			RegisterHealthCheck("dep", tt.check)

			router := setupTestGin()
			router.GET("/check", tt.handler)

			w := serve(router, "/check")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantStatus, decode(t, w)["status"])
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	router := setupTestGin()
	router.GET("/live", LivenessHandler())

	w := serve(router, "/live")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "alive", body["status"])
	assert.Contains(t, body, "uptime")
}

func resetGlobalMetrics() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.RequestCount = 0
	globalMetrics.RequestDuration = 0
	globalMetrics.ActiveRequests = 0
	globalMetrics.ErrorCount = 0
	globalMetrics.StatusCodes = make(map[string]int64)
	globalMetrics.Endpoints = make(map[string]int64)
	globalMetrics.StartTime = time.Now()
	globalMetrics.LastRequest = time.Time{}
	globalMetrics.totalDuration = 0
}

func resetGlobalHealthChecker() {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks = make(map[string]HealthCheck)
}

func BenchmarkMetricsMiddleware(b *testing.B) {
	resetGlobalMetrics()

	router := setupTestGin()
	router.Use(MetricsMiddleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < b.N; i++ {
		serve(router, "/test")
	}
}
