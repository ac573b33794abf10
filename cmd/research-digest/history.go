// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-digest/internal/export"
	"github.com/pdiddy/research-digest/internal/store"
	"github.com/pdiddy/research-digest/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history [task]",
	Short: "Inspect the run history database",
	Long: `History lists recorded runs, newest first, optionally for one task.
Use --run to print the records one run kept, --search to find stored
records by title or abstract, and --prune to delete all but the newest
runs of a task. Requires store.path in the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	term, _ := cmd.Flags().GetString("search")
	prune, _ := cmd.Flags().GetInt("prune")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if loadedConfig.Store.Path == "" {
		return fmt.Errorf("store.path is not configured")
	}
	s, err := store.Open(loadedConfig.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	task := ""
	if len(args) == 1 {
		task = args[0]
	}

	switch {
	case runID != "":
		if _, err := s.GetRun(ctx, runID); err != nil {
			return err
		}
		records, err := s.RunRecords(ctx, runID)
		if err != nil {
			return err
		}
		return printRecords(records, jsonOutput)

	case term != "":
		records, err := s.SearchRecords(ctx, term, limit)
		if err != nil {
			return err
		}
		return printRecords(records, jsonOutput)

	case prune > 0:
		if task == "" {
			return fmt.Errorf("--prune needs a task name")
		}
		n, err := s.PruneRuns(ctx, task, prune)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "pruned %d run(s) of %s\n", n, task)
		return nil
	}

	runs, err := s.ListRuns(ctx, task, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	loc, err := time.LoadLocation(loadedConfig.Settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	fmt.Fprintln(os.Stdout, formatRuns(runs, loc))
	return nil
}

func formatRuns(runs []types.Run, loc *time.Location) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Task,
			r.StartedAt.In(loc).Format("2006-01-02 15:04:05"),
			r.Duration().Round(10 * time.Millisecond).String(),
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.Kept),
		})
	}
	return export.RenderTable(
		[]string{"RUN", "TASK", "STARTED", "DURATION", "FETCHED", "KEPT"},
		rows,
		[]export.Alignment{
			export.AlignLeft, export.AlignLeft, export.AlignLeft,
			export.AlignRight, export.AlignRight, export.AlignRight,
		},
	)
}

func printRecords(records []types.Record, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No records found.")
		return nil
	}
	if err := export.WriteTable(os.Stdout, records); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%d records\n", len(records))
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	historyCmd.Flags().String("run", "", "print the records kept by this run id")
	historyCmd.Flags().String("search", "", "search stored records by title or abstract")
	historyCmd.Flags().Int("prune", 0, "keep only the newest N runs of the task")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs or records to list (0 for all runs)")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}
