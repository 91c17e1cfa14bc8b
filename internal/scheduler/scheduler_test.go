package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	_, err := New(Options{}, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestRunAlignedTicks(t *testing.T) {
	start := time.Date(2025, 8, 1, 17, 15, 0, 500_000_000, time.UTC)
	fc := clockwork.NewFakeClockAt(start)

	sched, err := New(Options{Interval: time.Second, AlignToStart: true}, fc, zerolog.Nop())
	require.NoError(t, err)

	ticks := make(chan time.Time, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx, func(_ context.Context, at time.Time) error {
			ticks <- at
			return errors.New("ignored")
		})
	}()

	fc.BlockUntil(1)
	fc.Advance(500 * time.Millisecond)
	require.Equal(t, time.Date(2025, 8, 1, 17, 15, 1, 0, time.UTC), receive(t, ticks))

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	require.Equal(t, time.Date(2025, 8, 1, 17, 15, 2, 0, time.UTC), receive(t, ticks))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunImmediate(t *testing.T) {
	start := time.Date(2025, 8, 1, 17, 15, 0, 250_000_000, time.UTC)
	fc := clockwork.NewFakeClockAt(start)

	sched, err := New(Options{Interval: time.Minute, Immediate: true}, fc, zerolog.Nop())
	require.NoError(t, err)

	ticks := make(chan time.Time, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = sched.Run(ctx, func(_ context.Context, at time.Time) error {
			ticks <- at
			return nil
		})
	}()

	require.Equal(t, start, receive(t, ticks))

	fc.BlockUntil(1)
	fc.Advance(time.Minute)
	require.Equal(t, start.Add(time.Minute), receive(t, ticks))
}

func TestRunStartupDelayCancelled(t *testing.T) {
	fc := clockwork.NewFakeClock()
	sched, err := New(Options{Interval: time.Second, StartupDelay: time.Hour}, fc, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx, func(context.Context, time.Time) error {
			t.Error("tick must not fire during startup delay")
			return nil
		})
	}()

	fc.BlockUntil(1)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func receive(t *testing.T, ch <-chan time.Time) time.Time {
	t.Helper()
	select {
	case at := <-ch:
		return at
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return time.Time{}
	}
}
