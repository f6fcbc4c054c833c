// Package server assembles the HTTP application: storage, cache, services,
// middleware and routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/database"
	"task-tracker/backend/internal/handlers"
	"task-tracker/backend/internal/middleware"
	"task-tracker/backend/internal/monitoring"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

const cacheKeyPrefix = "task-tracker:"

// Application holds all application dependencies and state.
type Application struct {
	Config *config.Config
	Logger zerolog.Logger
	Pool   *database.DatabasePool
	DB     *gorm.DB
	Redis  *redis.Client
	Cache  cache.Cache
	Router *gin.Engine
	Server *http.Server

	TaskService   services.TaskService
	ReportService services.ReportService
	AuthService   services.AuthService
	UserService   services.UserService
}

// New connects to the database and Redis, migrates the schema and wires the
// services. Redis is optional: when it is disabled or unreachable the cache
// runs in memory only and rate limits are per process.
func New(cfg *config.Config, logger zerolog.Logger) (*Application, error) {
	logger.Info().Msg("🚀 Initializing Task Tracker Backend...")
	logger.Info().Str("environment", cfg.Server.Environment).Msg("📋 Environment")

	pool, err := OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	logger.Info().Str("driver", pool.Driver()).Msg("✅ Database connected and configured")

	if err := repositories.RunMigrations(pool.DB, MigrationConfig(cfg)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = connectRedis(cfg, logger)
	} else {
		logger.Info().Msg("ℹ️  Redis disabled (memory cache only)")
	}

	app := NewWithDB(cfg, logger, pool.DB, redisClient)
	app.Pool = pool

	monitoring.RegisterHealthCheck("database", pool.Health)
	monitoring.RegisterStatsProvider("database", pool.Stats)
	monitoring.RegisterStatsProvider("cache", app.Cache.Stats)
	if redisClient != nil {
		monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	return app, nil
}

// OpenDatabase opens the configured database with the configured pool sizes.
func OpenDatabase(cfg *config.Config) (*database.DatabasePool, error) {
	return database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        database.ParseLogLevel(cfg.Database.LogLevel),
	})
}

func MigrationConfig(cfg *config.Config) *repositories.MigrationConfig {
	mc := repositories.DefaultMigrationConfig()
	mc.DBName = cfg.Database.Name
	return mc
}

func connectRedis(cfg *config.Config, logger zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("⚠️  Redis unavailable (continuing with memory cache only)")
		client.Close()
		return nil
	}
	logger.Info().Str("addr", cfg.GetRedisAddr()).Msg("✅ Redis connected")
	return client
}

// NewWithDB wires services on an already migrated database. redisClient may
// be nil.
func NewWithDB(cfg *config.Config, logger zerolog.Logger, db *gorm.DB, redisClient *redis.Client) *Application {
	app := &Application{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Redis:  redisClient,
	}

	if redisClient != nil {
		app.Cache = cache.NewMultiLevelCache(cache.NewRedisCache(redisClient, cacheKeyPrefix))
		logger.Info().Msg("✅ Multi-level cache initialized (Memory L1 + Redis L2)")
	} else {
		app.Cache = cache.NewMultiLevelCache(nil)
		logger.Info().Msg("✅ Memory cache initialized")
	}

	users := repositories.NewUserStore(db)
	tasks := repositories.NewTaskStore(db)

	app.UserService = services.NewUserService(users)
	app.AuthService = services.NewAuthService(users, repositories.NewTokenStore(db), cfg.Auth)
	app.TaskService = services.NewCachedTaskService(
		services.NewTaskService(tasks, users),
		app.Cache,
		cfg.Redis.CacheTTL,
		logger,
	)
	app.ReportService = services.NewReportService(repositories.NewReportStore(db), tasks)
	logger.Info().Msg("✅ All services initialized")

	app.SetupRoutes()
	return app
}

func (app *Application) SetupRoutes() {
	r := gin.New()

	// Global middleware stack (order matters!)
	r.Use(middleware.RecoveryWithLog(app.Logger))
	r.Use(middleware.RequestLogger(app.Logger))
	r.Use(monitoring.MetricsMiddleware())
	r.Use(middleware.SecureHeaders())

	requestsPerSecond := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
	r.Use(middleware.RateLimiter(requestsPerSecond, app.Config.RateLimit.BurstSize, middleware.IPKeyFunc))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.Config.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and monitoring endpoints (no auth required)
	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	v1 := r.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(app.AuthService, app.UserService)
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	protected := v1.Group("")
	protected.Use(middleware.Authenticate(app.AuthService, app.UserService))
	if app.Redis != nil && app.Config.RateLimit.MutationsPerMin > 0 {
		limiter := middleware.NewDistributedRateLimiter(app.Redis)
		protected.Use(limiter.CreateMiddleware("mutations", &middleware.RateLimit{
			Rate:    app.Config.RateLimit.MutationsPerMin,
			Window:  time.Minute,
			KeyFunc: middleware.UserKeyFunc,
			Skip:    middleware.IsSafeMethod,
		}))
	}
	{
		protected.GET("/auth/me", authHandler.Me)

		userHandler := handlers.NewUserHandler(app.UserService)
		protected.GET("/users", userHandler.ListUsers)

		taskHandler := handlers.NewTaskHandler(app.TaskService)
		taskRoutes := protected.Group("/tasks")
		{
			taskRoutes.POST("", taskHandler.CreateTask)
			taskRoutes.GET("", taskHandler.GetTasks)
			taskRoutes.GET("/my", taskHandler.MyTasks)
			taskRoutes.GET("/dashboard", taskHandler.DashboardStats)
			taskRoutes.GET("/:id", taskHandler.GetTaskByID)
			taskRoutes.PUT("/:id", taskHandler.UpdateTask)
			taskRoutes.PATCH("/:id", taskHandler.UpdateTask)
			taskRoutes.PATCH("/:id/status", taskHandler.UpdateStatus)
			taskRoutes.PATCH("/:id/completion", taskHandler.UpdateCompletion)
			taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
		}

		reportHandler := handlers.NewReportHandler(app.ReportService)
		reportRoutes := protected.Group("/reports")
		{
			reportRoutes.POST("", reportHandler.CreateReport)
			reportRoutes.GET("", reportHandler.GetReports)
			reportRoutes.GET("/my", reportHandler.MyReports)
			reportRoutes.GET("/task/:task_id", reportHandler.TaskReports)
			reportRoutes.GET("/:id", reportHandler.GetReportByID)
			reportRoutes.PUT("/:id", reportHandler.UpdateReport)
			reportRoutes.PATCH("/:id", reportHandler.UpdateReport)
			reportRoutes.DELETE("/:id", reportHandler.DeleteReport)
		}

		cacheHandler := handlers.NewCacheHandler(app.Cache)
		cacheRoutes := protected.Group("/cache")
		{
			cacheRoutes.GET("/stats", cacheHandler.GetCacheStats)
			cacheRoutes.POST("/invalidate", cacheHandler.InvalidateCache)
		}
	}

	app.Router = r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *Application) Run(ctx context.Context) error {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info().Str("addr", addr).Msg("🚀 Server starting")
		app.Logger.Info().Msgf("📊 Metrics available at http://%s/metrics", addr)
		app.Logger.Info().Msgf("💚 Health check at http://%s/health", addr)

		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.Logger.Info().Msg("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("❌ Server forced to shutdown")
		return err
	}
	app.Logger.Info().Msg("✅ Server stopped gracefully")
	return nil
}

// Close releases the cache, Redis and database connections.
func (app *Application) Close() {
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("⚠️  Failed to close cache")
		}
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("⚠️  Failed to close Redis")
		}
	}
	if app.Pool != nil {
		if err := app.Pool.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("⚠️  Failed to close database")
		}
	}
}
