package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"airdash/internal/alerting"
	"airdash/internal/epoch"
	"airdash/internal/fetcher"
	"airdash/internal/metrics"
)

var anchor = time.Date(2025, 8, 1, 17, 15, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
	return nil
}

type failingMarket struct{}

func (failingMarket) FetchMarket(context.Context) (fetcher.MarketSnapshot, error) {
	return fetcher.MarketSnapshot{}, errors.New("upstream unavailable")
}

func newTestService(t *testing.T, deps Deps) *Service {
	t.Helper()
	clk, err := epoch.NewClock(epoch.ClockConfig{
		AnchorEpoch: 2,
		AnchorStart: anchor,
		Duration:    72 * time.Hour,
		MinEpoch:    2,
		MaxEpoch:    11,
	})
	require.NoError(t, err)
	sched, err := epoch.NewSchedule(epoch.DefaultScheduleParams())
	require.NoError(t, err)

	deps.Clock = clk
	deps.Schedule = sched
	svc, err := New(deps, Options{TickInterval: time.Second, PollInterval: time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestNewRequiresCore(t *testing.T) {
	_, err := New(Deps{}, Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestTickSelectsActiveRow(t *testing.T) {
	svc := newTestService(t, Deps{})
	require.NoError(t, svc.Tick(context.Background(), anchor.Add(24*time.Hour)))

	snap := svc.Snapshot()
	require.Equal(t, 2, snap.Clock.CurrentEpoch)
	require.Equal(t, 33, snap.Clock.ProgressPercent)
	require.Equal(t, 2, snap.Active.Number)
	require.True(t, snap.Active.APYPercent.Equal(decimal.RequireFromString("9.6")))
	require.Equal(t, 11, snap.TotalEpochs)
	require.Equal(t, StatusDisabled, snap.Market.Status)
}

func TestTickNotifiesOnTransition(t *testing.T) {
	notifier := &recordingNotifier{}
	m := metrics.New()
	svc := newTestService(t, Deps{Notifier: notifier, Metrics: m})
	ctx := context.Background()

	require.NoError(t, svc.Tick(ctx, anchor.Add(71*time.Hour)))
	require.NoError(t, svc.Tick(ctx, anchor.Add(71*time.Hour+time.Second)))
	require.Empty(t, notifier.notes)

	require.NoError(t, svc.Tick(ctx, anchor.Add(72*time.Hour)))
	require.Len(t, notifier.notes, 1)
	require.Equal(t, 3, notifier.notes[0].Epoch)
	require.Equal(t, 2, notifier.notes[0].Previous)
	require.False(t, notifier.notes[0].Final)
	require.True(t, notifier.notes[0].APYPercent.Equal(decimal.RequireFromString("12.6")))

	require.Equal(t, float64(1), testutil.ToFloat64(m.Transitions))
	require.Equal(t, float64(3), testutil.ToFloat64(m.CurrentEpoch))
}

func TestTickNotifiesFinalCompletion(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(t, Deps{Notifier: notifier})
	ctx := context.Background()

	lastEnd := anchor.Add(10 * 72 * time.Hour)
	require.NoError(t, svc.Tick(ctx, lastEnd.Add(-time.Second)))
	require.NoError(t, svc.Tick(ctx, lastEnd))
	require.NoError(t, svc.Tick(ctx, lastEnd.Add(time.Hour)))

	require.Len(t, notifier.notes, 1)
	require.True(t, notifier.notes[0].Final)
	require.Equal(t, 11, notifier.notes[0].Epoch)

	snap := svc.Snapshot()
	require.Equal(t, epoch.PhaseComplete, snap.Clock.Phase)
	require.Equal(t, 100, snap.Clock.ProgressPercent)
}

func TestTickNotifiesFirstEpochStart(t *testing.T) {
	notifier := &recordingNotifier{}
	m := metrics.New()
	svc := newTestService(t, Deps{Notifier: notifier, Metrics: m})
	ctx := context.Background()

	require.NoError(t, svc.Tick(ctx, anchor.Add(-time.Second)))
	require.Equal(t, epoch.PhasePending, svc.Snapshot().Clock.Phase)
	require.Empty(t, notifier.notes)

	require.NoError(t, svc.Tick(ctx, anchor))
	require.Len(t, notifier.notes, 1)
	require.Equal(t, 2, notifier.notes[0].Epoch)
	require.Equal(t, 2, notifier.notes[0].Previous)
	require.False(t, notifier.notes[0].Final)
	require.Equal(t, float64(1), testutil.ToFloat64(m.Transitions))

	require.NoError(t, svc.Tick(ctx, anchor.Add(time.Second)))
	require.Len(t, notifier.notes, 1)
}

func TestPollDegradedKeepsLastData(t *testing.T) {
	market := &fetcher.StaticMarket{Snapshot: fetcher.MarketSnapshot{Symbol: "AIR", PriceUSD: decimal.RequireFromString("0.00725")}}
	holders := &fetcher.StaticHolders{Stats: fetcher.HolderStats{Holders: 12847}}
	m := metrics.New()
	svc := newTestService(t, Deps{Market: market, Holders: holders, Metrics: m})
	ctx := context.Background()

	require.NoError(t, svc.Poll(ctx, anchor))
	snap := svc.Snapshot()
	require.Equal(t, StatusOK, snap.Market.Status)
	require.Equal(t, StatusOK, snap.Holders.Status)
	require.Equal(t, int64(12847), snap.Holders.Data.Holders)

	svc.deps.Market = failingMarket{}
	err := svc.Poll(ctx, anchor.Add(time.Minute))
	require.ErrorContains(t, err, "upstream unavailable")

	snap = svc.Snapshot()
	require.Equal(t, StatusDegraded, snap.Market.Status)
	require.Equal(t, "upstream unavailable", snap.Market.Error)
	require.NotNil(t, snap.Market.Data)
	require.True(t, snap.Market.Data.PriceUSD.Equal(decimal.RequireFromString("0.00725")))
	require.Equal(t, StatusOK, snap.Holders.Status)
	require.Equal(t, float64(1), testutil.ToFloat64(m.FetchFailures.WithLabelValues("market")))

	require.NoError(t, svc.Tick(ctx, anchor.Add(time.Hour)))
	require.Equal(t, 2, svc.Snapshot().Clock.CurrentEpoch)
}

func TestSnapshotBeforeFirstTick(t *testing.T) {
	fc := clockwork.NewFakeClockAt(anchor.Add(80 * time.Hour))
	svc := newTestService(t, Deps{Wall: fc})

	snap := svc.Snapshot()
	require.Equal(t, 3, snap.Clock.CurrentEpoch)
	require.Equal(t, 3, snap.Active.Number)
}

func TestSubscribeKeepsNewest(t *testing.T) {
	svc := newTestService(t, Deps{})
	ch, cancel := svc.Subscribe()
	ctx := context.Background()

	require.NoError(t, svc.Tick(ctx, anchor))
	require.NoError(t, svc.Tick(ctx, anchor.Add(73*time.Hour)))

	snap := <-ch
	require.Equal(t, 3, snap.Clock.CurrentEpoch)

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)

	require.NoError(t, svc.Tick(ctx, anchor.Add(150*time.Hour)))
}

func TestRunPublishesUntilCancelled(t *testing.T) {
	fc := clockwork.NewFakeClockAt(anchor.Add(time.Hour))
	market := &fetcher.StaticMarket{Snapshot: fetcher.MarketSnapshot{Symbol: "AIR"}}
	svc := newTestService(t, Deps{Wall: fc, Market: market})

	ch, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case snap := <-ch:
		require.Equal(t, 2, snap.Clock.CurrentEpoch)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}
