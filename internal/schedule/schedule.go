// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule runs tasks on their configured intervals. Each run of a
// task holds a file lock so that overlapping runs, from this process or
// another, are skipped rather than stacked.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/research-digest/pkg/types"
)

// Runner executes one task.
type Runner func(ctx context.Context, task types.Task) error

// Entry describes a scheduled task.
type Entry struct {
	Task string
	Spec string
	Next time.Time
}

// Scheduler triggers tasks through a cron scheduler.
type Scheduler struct {
	cron    *cron.Cron
	run     Runner
	lockDir string
	logger  zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]scheduled
}

type scheduled struct {
	id   cron.EntryID
	spec string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation evaluates cron expressions in loc instead of local time.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = cron.New(cron.WithLocation(loc))
		}
	}
}

// New returns a scheduler that calls run for each trigger and keeps its
// lock files in lockDir.
func New(run Runner, lockDir string, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		run:     run,
		lockDir: lockDir,
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]scheduled),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spec converts a task interval into a cron spec. A Go duration such as
// "6h" becomes "@every 6h"; anything else must be a standard five-field
// cron expression or a descriptor like "@daily".
func Spec(interval string) (string, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return "", errors.New("interval is empty")
	}
	if d, err := time.ParseDuration(interval); err == nil {
		if d < time.Second {
			return "", fmt.Errorf("interval %s is shorter than one second", interval)
		}
		return "@every " + interval, nil
	}
	if _, err := cron.ParseStandard(interval); err != nil {
		return "", fmt.Errorf("interval %q is neither a duration nor a cron expression: %w", interval, err)
	}
	return interval, nil
}

// Add schedules task by its interval.
func (s *Scheduler) Add(task types.Task) error {
	spec, err := Spec(task.Interval)
	if err != nil {
		return fmt.Errorf("task %s: %w", task.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[task.Name]; ok {
		return fmt.Errorf("task %s is already scheduled", task.Name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.trigger(task) })
	if err != nil {
		return fmt.Errorf("task %s: %w", task.Name, err)
	}
	s.entries[task.Name] = scheduled{id: id, spec: spec}
	return nil
}

// Entries lists scheduled tasks sorted by name. Next is zero until the
// scheduler has started.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, e := range s.entries {
		out = append(out, Entry{Task: name, Spec: e.spec, Next: s.cron.Entry(e.id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// Start begins triggering tasks. Runs started by the scheduler see a
// context derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	n := len(s.entries)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("tasks", n).Msg("Scheduler started")
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) trigger(task types.Task) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.RunOnce(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("task", task.Name).Msg("Scheduled run failed")
	}
}

// RunOnce runs task while holding its lock file. It reports false without
// running when another run of the same task holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context, task types.Task) (bool, error) {
	if s.lockDir != "" {
		if err := os.MkdirAll(s.lockDir, 0o755); err != nil {
			return false, fmt.Errorf("creating lock directory: %w", err)
		}
	}
	lock := flock.New(s.LockPath(task.Name))
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring lock for task %s: %w", task.Name, err)
	}
	if !ok {
		s.logger.Warn().Str("task", task.Name).Msg("Previous run still in progress, skipping")
		return false, nil
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Str("task", task.Name).Msg("Failed to release task lock")
		}
	}()

	return true, s.run(ctx, task)
}

// LockPath returns the lock file used for task.
func (s *Scheduler) LockPath(task string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, task)
	return filepath.Join(s.lockDir, name+".lock")
}
