// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-digest/internal/digest"
	"github.com/pdiddy/research-digest/internal/export"
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run tasks once: fetch, filter and export",
	Long: `Run executes the named tasks (all tasks when none are named) once. Each
task fetches its sources concurrently, applies its filter chain in order
and writes the surviving records to <output>/<task>.yaml.

A source that fails is logged and skipped; the task still completes with
the records from the remaining sources. When store.path is configured the
run is also recorded in the history database.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out-dir")
	newOnly, _ := cmd.Flags().GetBool("new-only")
	noStore, _ := cmd.Flags().GetBool("no-store")

	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	tasks, err := selectTasks(loadedConfig, args)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks configured")
	}

	a, err := newApp(loadedConfig, logger, loadedSecrets, !noStore)
	if err != nil {
		return err
	}
	defer a.Close()
	runner := a.runner()

	failed := 0
	for _, task := range tasks {
		res, err := runner.Run(cmd.Context(), task, digest.Options{
			Format:  format,
			OutDir:  outDir,
			NewOnly: newOnly,
		})
		if err != nil {
			logger.Error().Err(err).Str("task", task.Name).Msg("Task failed")
			failed++
			continue
		}

		if format == export.FormatTable {
			fmt.Fprintf(os.Stdout, "%s: %d of %d records kept\n", task.Name, res.Kept, res.Fetched)
			if err := export.WriteTable(os.Stdout, res.Records); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: %d of %d records kept -> %s\n", task.Name, res.Kept, res.Fetched, res.Path)
	}

	if failed > 0 {
		return fmt.Errorf("%d task(s) failed", failed)
	}
	return nil
}

func init() {
	runCmd.Flags().String("format", "yaml", "output format: yaml, json, csl (bibliography) or table (printed, no file)")
	runCmd.Flags().String("out-dir", "", "write results here instead of each task's output directory")
	runCmd.Flags().Bool("new-only", false, "drop records whose URL an earlier run of the task already kept")
	runCmd.Flags().Bool("no-store", false, "do not record this run in the history database")

	rootCmd.AddCommand(runCmd)
}
