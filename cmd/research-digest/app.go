// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/pdiddy/research-digest/internal/digest"
	"github.com/pdiddy/research-digest/internal/fetch"
	"github.com/pdiddy/research-digest/internal/filter"
	"github.com/pdiddy/research-digest/internal/httputil"
	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/internal/source"
	"github.com/pdiddy/research-digest/internal/store"
	"github.com/pdiddy/research-digest/pkg/types"
)

// app wires the configured components for the run and daemon commands.
type app struct {
	cfg      *types.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	sources  *source.Registry
	store    *store.Store
	loc      *time.Location
}

func newApp(cfg *types.Config, logger zerolog.Logger, secrets map[string]string, useStore bool) (*app, error) {
	loc, err := time.LoadLocation(cfg.Settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	client := httputil.NewClient(cfg.Settings.HTTPConfig, httputil.WithMetrics(metrics))
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics,
		sources:  source.NewDefaultRegistry(source.Deps{Client: client, Logger: logger, Secrets: secrets}),
		loc:      loc,
	}

	if useStore && cfg.Store.Path != "" {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	return a, nil
}

func (a *app) runner() *digest.Runner {
	fetcher := fetch.New(a.sources, a.logger,
		fetch.WithWorkers(a.cfg.Settings.MaxWorkers),
		fetch.WithTimeout(a.cfg.Settings.Timeout),
		fetch.WithMetrics(a.metrics),
	)
	opts := []digest.Option{
		digest.WithMetrics(a.metrics),
		digest.WithLocation(a.loc),
	}
	if a.store != nil {
		opts = append(opts, digest.WithHistory(a.store))
	}
	return digest.New(fetcher, filter.New(a.logger, a.metrics), a.logger, opts...)
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// selectTasks returns the named tasks in the order given, or every task
// when names is empty.
func selectTasks(cfg *types.Config, names []string) ([]types.Task, error) {
	if len(names) == 0 {
		return cfg.Tasks, nil
	}
	tasks := make([]types.Task, 0, len(names))
	for _, name := range names {
		task, ok := cfg.Task(name)
		if !ok {
			return nil, fmt.Errorf("no task named %q", name)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
