// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source turns heterogeneous upstream sources into types.Record
// values. Each source kind has one Adapter; a Registry maps kind tags from
// the configuration to adapters.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-digest/internal/httputil"
	"github.com/pdiddy/research-digest/pkg/types"
)

// Adapter fetches one configured source and normalizes its items.
// Implementations must not panic on empty or malformed upstream data;
// a failed fetch returns no records and a *FetchError, *ParseError or
// *ConfigError.
type Adapter interface {
	Kind() string
	Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error)
}

// RequestCounter is implemented by adapters that may send several
// requests in one fetch. MaxRequests returns the worst case for src.
type RequestCounter interface {
	MaxRequests(src types.SourceConfig) int
}

// Requests returns the worst-case request count of fetching src with a,
// at least 1.
func Requests(a Adapter, src types.SourceConfig) int {
	rc, ok := a.(RequestCounter)
	if !ok {
		return 1
	}
	return max(rc.MaxRequests(src), 1)
}

// Deps are the collaborators adapters share.
type Deps struct {
	Client  *httputil.Client
	Logger  zerolog.Logger
	Secrets map[string]string
}

func (d Deps) secret(name string) string {
	if d.Secrets == nil {
		return ""
	}
	return d.Secrets[name]
}

// Registry maps kind tags to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// NewDefaultRegistry returns a registry holding every built-in adapter.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(&APIAdapter{deps: deps})
	r.Register(&WebAdapter{deps: deps})
	r.Register(&ArxivAdapter{deps: deps})
	r.Register(&ArxivFeedAdapter{deps: deps})
	r.Register(&VenueFeedAdapter{deps: deps})
	r.Register(&SemanticScholarAdapter{deps: deps})
	r.Register(&DBLPAdapter{deps: deps})
	r.Register(&OpenAlexAdapter{deps: deps})
	return r
}

// Register adds a, replacing any adapter already registered for its kind.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind()] = a
}

// Lookup returns the adapter for kind.
func (r *Registry) Lookup(kind string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	return a, ok
}

// Kinds returns the registered kind tags in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// FetchError reports a transport failure or non-success HTTP status.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching source %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing source %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError reports a source whose configuration lacks something the
// adapter requires.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source %s: %s", e.Source, e.Reason)
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func fetchErr(src types.SourceConfig, err error) error {
	return &FetchError{Source: src.Name, Err: err}
}

func parseErr(src types.SourceConfig, err error) error {
	return &ParseError{Source: src.Name, Err: err}
}

func configErr(src types.SourceConfig, reason string) error {
	return &ConfigError{Source: src.Name, Reason: reason}
}

// label builds a SourceLabel with an optional sub-label.
func label(src types.SourceConfig, sub string) string {
	if sub == "" {
		return src.Name
	}
	return src.Name + "/" + sub
}
