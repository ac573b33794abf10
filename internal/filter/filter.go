// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter applies an ordered chain of filter rules to normalized
// records. Every stage is a pure transform: it selects records and never
// modifies them, and the output of one stage is the input of the next.
package filter

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/pkg/types"
)

// stage filters one record list.
type stage func([]types.Record) []types.Record

// Pipeline runs filter rules in order.
type Pipeline struct {
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Now supplies the recency cutoff reference. Nil means time.Now.
	Now func() time.Time
}

// New returns a pipeline that logs to logger and records stage counts in
// metrics (which may be nil).
func New(logger zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{Logger: logger, Metrics: metrics, Now: time.Now}
}

// Apply runs rules over records in declared order. Rules of an unknown
// kind, or whose payload cannot be compiled, are skipped with a warning
// and the input passes through unchanged.
func (p *Pipeline) Apply(records []types.Record, rules []types.FilterRule) []types.Record {
	out := records
	for i, rule := range rules {
		log := p.Logger.With().Int("rule", i).Str("type", string(rule.Kind)).Logger()

		fn, err := p.build(rule)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping filter rule")
			continue
		}
		if fn == nil {
			continue
		}

		before := len(out)
		out = fn(out)
		p.Metrics.ObserveStage(string(rule.Kind), before, len(out))
		log.Debug().Int("in", before).Int("out", len(out)).Msg("Applied filter")
	}
	if out == nil {
		return []types.Record{}
	}
	return out
}

// build returns the stage for rule, nil for a rule that is a no-op.
func (p *Pipeline) build(rule types.FilterRule) (stage, error) {
	switch rule.Kind {
	case types.RuleRegex:
		return regexStage(rule)
	case types.RuleKeyword:
		return keywordStage(rule), nil
	case types.RuleLength:
		return lengthStage(rule), nil
	case types.RuleDeduplicate:
		return dedupeStage(rule), nil
	case types.RuleRecency:
		return recencyStage(rule, p.now()), nil
	default:
		return nil, &UnknownKindError{Kind: string(rule.Kind)}
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// UnknownKindError reports a rule whose kind no stage implements.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown filter type %q", e.Kind)
}

// keepIf returns the records for which keep reports true, in order.
func keepIf(records []types.Record, keep func(types.Record) bool) []types.Record {
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// searchText derives the text a regex or keyword rule inspects.
func searchText(r types.Record, scope types.Scope) string {
	switch scope {
	case types.ScopeTitle:
		return r.Title
	case types.ScopeAbstract:
		return r.AbstractOrContent()
	default:
		return r.Title + " " + r.AbstractOrContent()
	}
}
