package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/logging"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/server"
)

var version = "dev"

func main() {
	root := &cli.Command{
		Name:  "task-tracker",
		Usage: "Role-based task tracking API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Sources: cli.EnvVars("TASK_TRACKER_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: runServe,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Commands: []*cli.Command{
					{Name: "up", Usage: "Apply all pending migrations", Action: runMigrateUp},
					{Name: "down", Usage: "Roll back the last migration", Action: runMigrateDown},
					{Name: "version", Usage: "Print the current schema version", Action: runMigrateVersion},
				},
			},
			{
				Name:  "version",
				Usage: "Print the build version",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Println(version)
					return nil
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("❌ task-tracker failed")
	}
}

// setup loads configuration and installs the global logger.
func setup(cmd *cli.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("load configuration: %w", err)
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("configure logging: %w", err)
	}
	log.Logger = logger

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return cfg, logger, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	app, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

func runMigrateUp(_ context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	pool, err := server.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repositories.RunMigrations(pool.DB, server.MigrationConfig(cfg)); err != nil {
		return err
	}
	logger.Info().Msg("✅ Migrations applied")
	return nil
}

func runMigrateDown(_ context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	pool, err := server.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repositories.RollbackMigration(pool.DB, server.MigrationConfig(cfg)); err != nil {
		return err
	}
	logger.Info().Msg("✅ Rolled back one migration")
	return nil
}

func runMigrateVersion(_ context.Context, cmd *cli.Command) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	pool, err := server.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	v, dirty, err := repositories.GetMigrationVersion(pool.DB, server.MigrationConfig(cfg))
	if err != nil {
		return err
	}
	fmt.Printf("version %d (dirty: %t)\n", v, dirty)
	return nil
}
