// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-digest/pkg/types"
)

func TestSpec(t *testing.T) {
	tests := []struct {
		interval string
		want     string
		wantErr  bool
	}{
		{"6h", "@every 6h", false},
		{" 90m ", "@every 90m", false},
		{"0 8 * * *", "0 8 * * *", false},
		{"@daily", "@daily", false},
		{"@every 2h", "@every 2h", false},
		{"", "", true},
		{"500ms", "", true},
		{"every morning", "", true},
		{"61 * * * *", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			got, err := Spec(tt.interval)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddAndEntries(t *testing.T) {
	s := New(func(context.Context, types.Task) error { return nil }, t.TempDir(), zerolog.Nop())

	require.NoError(t, s.Add(types.Task{Name: "weekly", Interval: "0 9 * * 1"}))
	require.NoError(t, s.Add(types.Task{Name: "daily", Interval: "24h"}))
	assert.Error(t, s.Add(types.Task{Name: "daily", Interval: "12h"}), "duplicate name")
	assert.Error(t, s.Add(types.Task{Name: "bad", Interval: "soon"}))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "daily", entries[0].Task)
	assert.Equal(t, "@every 24h", entries[0].Spec)
	assert.Equal(t, "weekly", entries[1].Task)
	assert.True(t, entries[1].Next.IsZero(), "not started")
}

func TestRunOnceCallsRunner(t *testing.T) {
	var got string
	s := New(func(_ context.Context, task types.Task) error {
		got = task.Name
		return nil
	}, t.TempDir(), zerolog.Nop())

	ran, err := s.RunOnce(context.Background(), types.Task{Name: "vla-daily"})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "vla-daily", got)
}

func TestRunOnceReturnsRunnerError(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(context.Context, types.Task) error { return boom }, t.TempDir(), zerolog.Nop())

	ran, err := s.RunOnce(context.Background(), types.Task{Name: "t"})
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	var calls atomic.Int32
	s := New(func(context.Context, types.Task) error {
		calls.Add(1)
		return nil
	}, t.TempDir(), zerolog.Nop())
	task := types.Task{Name: "nightly build"}

	// Hold the lock the way a concurrent run would.
	held := flock.New(s.LockPath(task.Name))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	ran, err := s.RunOnce(context.Background(), task)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, held.Unlock())
	ran, err = s.RunOnce(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLockPathSanitizes(t *testing.T) {
	s := New(nil, "/var/lock/digest", zerolog.Nop())
	assert.Equal(t, "/var/lock/digest/a_b_c.lock", s.LockPath("a/b c"))
}

func TestStartTriggersAndStopCancels(t *testing.T) {
	var calls atomic.Int32
	cancelled := make(chan struct{})
	s := New(func(ctx context.Context, _ types.Task) error {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			close(cancelled)
		}
		return nil
	}, t.TempDir(), zerolog.Nop(), WithLocation(time.UTC))
	require.NoError(t, s.Add(types.Task{Name: "tick", Interval: "1s"}))

	s.Start(context.Background())
	assert.False(t, s.Entries()[0].Next.IsZero())
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	s.Stop()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("run context was not cancelled by Stop")
	}
}
