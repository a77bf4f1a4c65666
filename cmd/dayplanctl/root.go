package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tophand-tech/dayplan/backend/internal/config"
	"github.com/tophand-tech/dayplan/backend/internal/database"
	"github.com/tophand-tech/dayplan/backend/internal/logger"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "dayplanctl",
	Short:        "Operations tooling for the day-plan service",
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// env is what every subcommand needs: config, logger and the database.
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *sql.DB
}

func (e *env) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	_ = e.log.Sync()
}

func openEnv() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Scheduler.Store != "postgres" {
		return nil, fmt.Errorf("dayplanctl needs SCHEDULER_STORE=postgres, got %q", cfg.Scheduler.Store)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: log, db: db}, nil
}
