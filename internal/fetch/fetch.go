// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch runs the sources of one task and merges their records.
// A source that fails, times out or panics contributes no records; the
// remaining sources are unaffected.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/internal/source"
	"github.com/pdiddy/research-digest/pkg/types"
)

// Defaults applied when the settings leave a value at zero.
const (
	DefaultWorkers = 3
	DefaultTimeout = 30 * time.Second
)

// Fetch outcomes recorded in metrics.
const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

// Orchestrator dispatches sources to adapters.
type Orchestrator struct {
	registry *source.Registry
	logger   zerolog.Logger
	metrics  *observability.Metrics
	workers  int
	timeout  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds the number of sources fetched at once. One fetches
// sources sequentially.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithTimeout bounds each request a source sends. A source's deadline is
// d times its worst-case request count.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMetrics records fetch outcomes in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New returns an orchestrator resolving source kinds through registry.
func New(registry *source.Registry, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   logger,
		workers:  DefaultWorkers,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute fetches every source of task and returns their records
// concatenated in source-declaration order. It never fails: sources of an
// unknown kind are skipped with a warning and failing sources are logged.
func (o *Orchestrator) Execute(ctx context.Context, task types.Task) []types.Record {
	log := observability.WithTask(o.logger, task.Name)
	results := make([][]types.Record, len(task.Sources))

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	for i, src := range task.Sources {
		adapter, ok := o.registry.Lookup(src.Kind)
		if !ok {
			log.Warn().
				Str("source", src.Name).
				Str("kind", src.Kind).
				Msg("Skipping source of unknown type")
			o.metrics.ObserveFetch(src.Kind, outcomeSkipped, 0, 0)
			continue
		}

		wg.Add(1)
		go func(i int, src types.SourceConfig, adapter source.Adapter) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				log.Warn().Str("source", src.Name).Err(ctx.Err()).Msg("Source not fetched")
				return
			}
			defer func() { <-sem }()
			results[i] = o.fetchOne(ctx, log, src, adapter)
		}(i, src, adapter)
	}
	wg.Wait()

	var all []types.Record
	for _, recs := range results {
		all = append(all, recs...)
	}
	if all == nil {
		all = []types.Record{}
	}
	log.Info().
		Int("sources", len(task.Sources)).
		Int("records", len(all)).
		Msg("Fetched task sources")
	return all
}

// fetchOne runs a single adapter under its own deadline and turns every
// failure, including a panic, into a log entry and zero records.
func (o *Orchestrator) fetchOne(ctx context.Context, log zerolog.Logger, src types.SourceConfig, adapter source.Adapter) (records []types.Record) {
	log = observability.WithSource(log, src.Name, src.Kind)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.timeout*time.Duration(source.Requests(adapter, src)))
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Msg("Source adapter panicked")
			o.metrics.ObserveFetch(src.Kind, outcomeError, 0, time.Since(start))
			records = nil
		}
	}()

	records, err := adapter.Fetch(ctx, src)
	elapsed := time.Since(start)
	if err != nil {
		if source.IsConfigError(err) {
			log.Warn().Err(err).Msg("Source misconfigured")
		} else {
			log.Error().Err(err).Dur("elapsed", elapsed).Msg("Source fetch failed")
		}
		o.metrics.ObserveFetch(src.Kind, outcomeError, 0, elapsed)
		return nil
	}

	o.metrics.ObserveFetch(src.Kind, outcomeOK, len(records), elapsed)
	log.Debug().
		Int("records", len(records)).
		Dur("elapsed", elapsed).
		Msg("Fetched source")
	return records
}
