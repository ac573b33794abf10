// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-digest/internal/digest"
	"github.com/pdiddy/research-digest/internal/export"
	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/internal/schedule"
	"github.com/pdiddy/research-digest/pkg/types"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon [task...]",
	Short: "Run tasks on their configured intervals until interrupted",
	Long: `Daemon schedules each task by its interval. A Go duration such as "6h"
runs the task every six hours; anything else is read as a cron expression
evaluated in settings.timezone.

Each run holds a lock file, so a run that is still in progress when its
next trigger fires causes that trigger to be skipped. When metrics.addr is
set, Prometheus metrics are served at /metrics.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	lockDir, _ := cmd.Flags().GetString("lock-dir")
	runNow, _ := cmd.Flags().GetBool("run-now")

	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	if format == export.FormatTable {
		return fmt.Errorf("daemon writes files; use yaml, json or csl")
	}
	tasks, err := selectTasks(loadedConfig, args)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks configured")
	}

	a, err := newApp(loadedConfig, logger, loadedSecrets, true)
	if err != nil {
		return err
	}
	defer a.Close()
	runner := a.runner()

	run := func(ctx context.Context, task types.Task) error {
		_, err := runner.Run(ctx, task, digest.Options{Format: format})
		return err
	}
	sched := schedule.New(run, lockDir, logger, schedule.WithLocation(a.loc))
	for _, task := range tasks {
		if err := sched.Add(task); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if runNow {
		for _, task := range tasks {
			if _, err := sched.RunOnce(ctx, task); err != nil {
				logger.Error().Err(err).Str("task", task.Name).Msg("Initial run failed")
			}
		}
	}

	var metricsServer *http.Server
	if addr := loadedConfig.Metrics.Addr; addr != "" {
		metricsServer = observability.NewMetricsServer(addr, a.registry)
		go func() {
			logger.Info().Str("address", addr).Msg("Metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	sched.Start(ctx)
	for _, e := range sched.Entries() {
		logger.Info().Str("task", e.Task).Str("schedule", e.Spec).Time("next", e.Next).Msg("Task scheduled")
	}

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	sched.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	return nil
}

func init() {
	daemonCmd.Flags().String("format", "yaml", "output file format: yaml, json or csl")
	daemonCmd.Flags().String("lock-dir", filepath.Join(os.TempDir(), "research-digest"), "directory for per-task lock files")
	daemonCmd.Flags().Bool("run-now", false, "run every task once before waiting for the first trigger")

	rootCmd.AddCommand(daemonCmd)
}
