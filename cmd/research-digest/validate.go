// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-digest/internal/config"
	"github.com/pdiddy/research-digest/internal/export"
	"github.com/pdiddy/research-digest/internal/schedule"
	"github.com/pdiddy/research-digest/internal/source"
	"github.com/pdiddy/research-digest/pkg/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and print its tasks, sources and filters",
	Long: `Validate loads the configuration, reports structural errors, and prints
every task with its schedule, sources and filter chain. Sources and filters
of a type no implementation handles are listed as warnings; they would be
skipped at run time.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	invalid := 0

	taskRows := make([][]string, 0, len(cfg.Tasks))
	var sourceRows, ruleRows [][]string
	for _, task := range cfg.Tasks {
		spec, err := schedule.Spec(task.Interval)
		if err != nil {
			spec = "invalid: " + err.Error()
			invalid++
		}
		taskRows = append(taskRows, []string{
			task.Name, task.Interval, spec,
			strconv.Itoa(len(task.Sources)), strconv.Itoa(len(task.Filters)), task.Output,
		})
		for _, src := range task.Sources {
			sourceRows = append(sourceRows, []string{task.Name, src.Name, src.Kind, src.URL})
		}
		for i, rule := range task.Filters {
			ruleRows = append(ruleRows, []string{task.Name, strconv.Itoa(i), string(rule.Kind), describeRule(rule)})
		}
	}

	fmt.Fprintln(os.Stdout, export.RenderTable(
		[]string{"TASK", "INTERVAL", "SCHEDULE", "SOURCES", "FILTERS", "OUTPUT"},
		taskRows,
		[]export.Alignment{export.AlignLeft, export.AlignLeft, export.AlignLeft, export.AlignRight, export.AlignRight},
	))
	if len(sourceRows) > 0 {
		fmt.Fprintln(os.Stdout, export.RenderTable([]string{"TASK", "SOURCE", "TYPE", "URL"}, sourceRows, nil))
	}
	if len(ruleRows) > 0 {
		fmt.Fprintln(os.Stdout, export.RenderTable(
			[]string{"TASK", "#", "TYPE", "RULE"},
			ruleRows,
			[]export.Alignment{export.AlignLeft, export.AlignRight},
		))
	}

	kinds := source.NewDefaultRegistry(source.Deps{}).Kinds()
	for _, w := range config.Warnings(cfg, kinds) {
		fmt.Fprintf(os.Stdout, "warning: %s\n", w)
	}

	if invalid > 0 {
		return fmt.Errorf("%d task(s) have an invalid interval", invalid)
	}
	fmt.Fprintf(os.Stdout, "configuration ok: %d task(s)\n", len(cfg.Tasks))
	return nil
}

// describeRule summarizes a filter rule's payload on one line.
func describeRule(rule types.FilterRule) string {
	var parts []string
	if rule.Action != "" {
		parts = append(parts, string(rule.Action))
	}
	if rule.Scope != "" && rule.Scope != types.ScopeAll {
		parts = append(parts, "scope="+string(rule.Scope))
	}
	if rule.CaseSensitive {
		parts = append(parts, "case-sensitive")
	}

	switch {
	case rule.Regex != nil:
		parts = append(parts, fmt.Sprintf("pattern=%q", rule.Regex.Pattern))
	case rule.Keyword != nil:
		parts = append(parts, fmt.Sprintf("%s of [%s]", rule.Keyword.Match, strings.Join(rule.Keyword.Keywords, ", ")))
	case rule.Length != nil:
		if rule.Length.Min != nil {
			parts = append(parts, fmt.Sprintf("min=%d", *rule.Length.Min))
		}
		if rule.Length.Max != nil {
			parts = append(parts, fmt.Sprintf("max=%d", *rule.Length.Max))
		}
	case rule.Dedupe != nil:
		fields := make([]string, len(rule.Dedupe.Fields))
		for i, f := range rule.Dedupe.Fields {
			fields[i] = string(f)
		}
		parts = append(parts, "by "+strings.Join(fields, "+"))
	case rule.Recency != nil:
		if w := rule.Recency.Window(); w > 0 {
			parts = append(parts, "within "+w.String())
		} else {
			parts = append(parts, "no window")
		}
	default:
		return "unknown type, skipped"
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
