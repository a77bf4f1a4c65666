package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tophand-tech/dayplan/backend/internal/backfill"
	"github.com/tophand-tech/dayplan/backend/internal/repository"
	"github.com/tophand-tech/dayplan/backend/internal/scheduler"
)

var backfillJSON bool

var backfillCmd = &cobra.Command{
	Use:   "backfill-assignments",
	Short: "Create crew assignments for jobs that only have assigned_to set",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	repo := repository.NewRepository(e.cfg, e.db)

	params := scheduler.ParametersFromConfig(e.cfg)
	// existing pairs must surface as duplicates to be counted as skipped
	params.DuplicatePolicy = scheduler.DuplicateReject

	sched, err := scheduler.New(params, scheduler.Dependencies{
		Store:  repo,
		Jobs:   repo,
		Users:  repo,
		Logger: e.log,
	})
	if err != nil {
		return err
	}

	report, err := backfill.Run(ctx, repo, sched, e.log)
	if err != nil {
		return err
	}

	if backfillJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "jobs with assigned_to: %d\n", report.Total)
	fmt.Fprintf(cmd.OutOrStdout(), "inserted:              %d\n", report.Inserted)
	fmt.Fprintf(cmd.OutOrStdout(), "skipped:               %d\n", report.Skipped)
	fmt.Fprintf(cmd.OutOrStdout(), "rejected:              %d\n", len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s user=%s %s: %s\n", f.JobNumber, f.UserID, f.Code, f.Message)
	}
	return nil
}
