// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest runs a task end to end: fetch every source, apply the
// filter chain, then record and export what survived.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-digest/internal/export"
	"github.com/pdiddy/research-digest/internal/fetch"
	"github.com/pdiddy/research-digest/internal/filter"
	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/internal/store"
	"github.com/pdiddy/research-digest/pkg/types"
)

// History is the part of the run store the runner needs.
type History interface {
	SaveRun(ctx context.Context, result types.RunResult) (types.Run, error)
	SeenURLs(ctx context.Context, task string, urls []string) (map[string]bool, error)
}

// Options adjust a single run.
type Options struct {
	// Format selects the export file encoding. FormatTable and the empty
	// format write no file.
	Format export.Format

	// OutDir overrides the task's output directory.
	OutDir string

	// NewOnly drops records whose URL an earlier run of the task kept.
	// It needs a history.
	NewOnly bool
}

// Result is a finished run and the export file written for it, if any.
type Result struct {
	types.RunResult
	Path string
}

// Runner composes the fetch and filter stages with the run history.
type Runner struct {
	fetcher  *fetch.Orchestrator
	pipeline *filter.Pipeline
	history  History
	metrics  *observability.Metrics
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistory records every run in h.
func WithHistory(h History) Option {
	return func(r *Runner) { r.history = h }
}

// WithMetrics records task runs in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLocation stamps runs in loc.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New returns a runner.
func New(fetcher *fetch.Orchestrator, pipeline *filter.Pipeline, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		fetcher:  fetcher,
		pipeline: pipeline,
		logger:   logger,
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes task once. Source failures never fail the run; only
// history and export errors are returned, alongside the result built so
// far.
func (r *Runner) Run(ctx context.Context, task types.Task, opts Options) (Result, error) {
	log := observability.WithTask(r.logger, task.Name)
	started := r.now().In(r.loc)

	records := r.fetcher.Execute(ctx, task)
	fetched := len(records)
	kept := r.pipeline.Apply(records, task.Filters)

	if opts.NewOnly {
		var err error
		kept, err = r.dropSeen(ctx, task.Name, kept)
		if err != nil {
			return Result{}, err
		}
	}

	res := Result{RunResult: types.RunResult{
		Run: types.Run{
			ID:         store.NewRunID(),
			Task:       task.Name,
			StartedAt:  started,
			FinishedAt: r.now().In(r.loc),
			Fetched:    fetched,
			Kept:       len(kept),
		},
		Template:  task.Template,
		Variables: task.Variables,
		Records:   kept,
	}}
	r.metrics.ObserveRun(task.Name, len(kept))

	if r.history != nil {
		if _, err := r.history.SaveRun(ctx, res.RunResult); err != nil {
			return res, fmt.Errorf("saving run of %s: %w", task.Name, err)
		}
	}

	if opts.Format != "" && opts.Format != export.FormatTable {
		dir := opts.OutDir
		if dir == "" {
			dir = task.Output
		}
		path, err := export.WriteFile(dir, res.RunResult, opts.Format)
		if err != nil {
			return res, fmt.Errorf("exporting run of %s: %w", task.Name, err)
		}
		res.Path = path
	}

	log.Info().
		Str("run", res.ID).
		Int("fetched", fetched).
		Int("kept", len(kept)).
		Dur("elapsed", res.Duration()).
		Str("file", res.Path).
		Msg("Task finished")
	return res, nil
}

func (r *Runner) dropSeen(ctx context.Context, task string, records []types.Record) ([]types.Record, error) {
	if r.history == nil {
		return nil, fmt.Errorf("new-only runs of %s need a run store", task)
	}
	urls := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.URL != "" {
			urls = append(urls, rec.URL)
		}
	}
	seen, err := r.history.SeenURLs(ctx, task, urls)
	if err != nil {
		return nil, fmt.Errorf("checking history of %s: %w", task, err)
	}

	fresh := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if rec.URL == "" || !seen[rec.URL] {
			fresh = append(fresh, rec)
		}
	}
	return fresh, nil
}
