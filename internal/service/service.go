package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"airdash/internal/alerting"
	"airdash/internal/epoch"
	"airdash/internal/fetcher"
	"airdash/internal/metrics"
	"airdash/internal/scheduler"
)

// SourceStatus reports the health of an external data source.
type SourceStatus string

const (
	StatusPending  SourceStatus = "pending"
	StatusOK       SourceStatus = "ok"
	StatusDegraded SourceStatus = "degraded"
	StatusDisabled SourceStatus = "disabled"
)

// MarketView is the last market data plus its source status. Data survives a
// failed poll so the dashboard can keep showing the previous value.
type MarketView struct {
	Status    SourceStatus            `json:"status"`
	Data      *fetcher.MarketSnapshot `json:"data,omitempty"`
	Error     string                  `json:"error,omitempty"`
	CheckedAt time.Time               `json:"checked_at"`
}

// HoldersView is the last holder stats plus its source status.
type HoldersView struct {
	Status    SourceStatus         `json:"status"`
	Data      *fetcher.HolderStats `json:"data,omitempty"`
	Error     string               `json:"error,omitempty"`
	CheckedAt time.Time            `json:"checked_at"`
}

// Snapshot is everything the presentation layer renders for one tick.
type Snapshot struct {
	At          time.Time        `json:"at"`
	Clock       epoch.State      `json:"clock"`
	Active      epoch.Definition `json:"active"`
	TotalEpochs int              `json:"total_epochs"`
	Market      MarketView       `json:"market"`
	Holders     HoldersView      `json:"holders"`
}

// Options tune the service loops.
type Options struct {
	TickInterval time.Duration
	PollInterval time.Duration
	StartupDelay time.Duration
}

// Deps are the collaborators of the service. Market, Holders, Notifier and
// Metrics are optional.
type Deps struct {
	Clock    *epoch.Clock
	Schedule *epoch.Schedule
	Market   fetcher.MarketFetcher
	Holders  fetcher.HolderFetcher
	Notifier alerting.Notifier
	Metrics  *metrics.Metrics
	Wall     clockwork.Clock
}

// Service owns the latest dashboard snapshot and publishes it to subscribers.
type Service struct {
	deps   Deps
	opts   Options
	wall   clockwork.Clock
	base   zerolog.Logger
	logger zerolog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	ticked   bool

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// New constructs the dashboard service.
func New(deps Deps, opts Options, logger zerolog.Logger) (*Service, error) {
	if deps.Clock == nil || deps.Schedule == nil {
		return nil, errors.New("service requires an epoch clock and schedule")
	}
	wall := deps.Wall
	if wall == nil {
		wall = clockwork.NewRealClock()
	}

	initial := Snapshot{
		TotalEpochs: deps.Schedule.Len(),
		Market:      MarketView{Status: StatusPending},
		Holders:     HoldersView{Status: StatusPending},
	}
	if deps.Market == nil {
		initial.Market.Status = StatusDisabled
	}
	if deps.Holders == nil {
		initial.Holders.Status = StatusDisabled
	}

	return &Service{
		deps:     deps,
		opts:     opts,
		wall:     wall,
		base:     logger,
		logger:   logger.With().Str("component", "service").Logger(),
		snapshot: initial,
		subs:     make(map[int]chan Snapshot),
	}, nil
}

// Run drives the clock tick and the source poll until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	tick, err := scheduler.New(scheduler.Options{
		Name:         "clock",
		Interval:     s.opts.TickInterval,
		AlignToStart: true,
		StartupDelay: s.opts.StartupDelay,
		Immediate:    true,
	}, s.wall, s.base)
	if err != nil {
		return fmt.Errorf("clock scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tick.Run(gctx, s.Tick) })

	if s.deps.Market != nil || s.deps.Holders != nil {
		poll, err := scheduler.New(scheduler.Options{
			Name:         "sources",
			Interval:     s.opts.PollInterval,
			StartupDelay: s.opts.StartupDelay,
			Immediate:    true,
		}, s.wall, s.base)
		if err != nil {
			return fmt.Errorf("source scheduler: %w", err)
		}
		g.Go(func() error { return poll.Run(gctx, s.Poll) })
	}

	return g.Wait()
}

// Tick recomputes the clock state at now and publishes the snapshot.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	st := s.deps.Clock.Compute(now)
	active, ok := s.deps.Schedule.ForEpoch(st.CurrentEpoch)
	if !ok {
		return fmt.Errorf("epoch %d not in schedule", st.CurrentEpoch)
	}

	s.mu.Lock()
	prev := s.snapshot.Clock
	first := !s.ticked
	s.snapshot.At = now.UTC()
	s.snapshot.Clock = st
	s.snapshot.Active = active
	s.ticked = true
	snap := s.snapshot
	s.mu.Unlock()

	s.deps.Metrics.ObserveClock(st, active.APYPercent)

	if !first {
		s.detectTransition(ctx, prev, st, active)
	}

	s.publish(snap)
	return nil
}

func (s *Service) detectTransition(ctx context.Context, prev, cur epoch.State, active epoch.Definition) {
	epochChanged := prev.CurrentEpoch != cur.CurrentEpoch
	started := prev.Phase == epoch.PhasePending && cur.Phase == epoch.PhaseActive
	completed := prev.Phase != epoch.PhaseComplete && cur.Phase == epoch.PhaseComplete
	if !epochChanged && !started && !completed {
		return
	}

	s.logger.Info().
		Int("from", prev.CurrentEpoch).
		Int("to", cur.CurrentEpoch).
		Str("phase", string(cur.Phase)).
		Str("apy_percent", active.APYPercent.String()).
		Msg("epoch transition")
	if s.deps.Metrics != nil {
		s.deps.Metrics.Transitions.Inc()
	}

	if s.deps.Notifier == nil {
		return
	}
	note := alerting.Notification{
		Epoch:       cur.CurrentEpoch,
		TotalEpochs: s.deps.Schedule.Len(),
		Previous:    prev.CurrentEpoch,
		APYPercent:  active.APYPercent,
		RewardPool:  active.RewardPool,
		EpochStart:  cur.EpochStart,
		EpochEnd:    cur.EpochEnd,
		Final:       completed,
	}
	if err := s.deps.Notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Int("epoch", cur.CurrentEpoch).Msg("failed to dispatch epoch notification")
	}
}

// Poll refreshes market and holder data. Failures mark the source degraded
// and are retried on the next poll; they never touch the clock state.
func (s *Service) Poll(ctx context.Context, at time.Time) error {
	var errs []error

	if s.deps.Market != nil {
		data, err := s.deps.Market.FetchMarket(ctx)
		s.mu.Lock()
		view := &s.snapshot.Market
		view.CheckedAt = at.UTC()
		if err != nil {
			view.Status = StatusDegraded
			view.Error = err.Error()
		} else {
			view.Status = StatusOK
			view.Error = ""
			view.Data = &data
		}
		s.mu.Unlock()

		if err != nil {
			s.recordFailure("market")
			errs = append(errs, fmt.Errorf("fetch market: %w", err))
		} else if s.deps.Metrics != nil {
			s.deps.Metrics.PriceUSD.Set(data.PriceUSD.InexactFloat64())
		}
	}

	if s.deps.Holders != nil {
		data, err := s.deps.Holders.FetchHolders(ctx)
		s.mu.Lock()
		view := &s.snapshot.Holders
		view.CheckedAt = at.UTC()
		if err != nil {
			view.Status = StatusDegraded
			view.Error = err.Error()
		} else {
			view.Status = StatusOK
			view.Error = ""
			view.Data = &data
		}
		s.mu.Unlock()

		if err != nil {
			s.recordFailure("holders")
			errs = append(errs, fmt.Errorf("fetch holders: %w", err))
		} else if s.deps.Metrics != nil {
			s.deps.Metrics.Holders.Set(float64(data.Holders))
		}
	}

	s.publish(s.Snapshot())
	return errors.Join(errs...)
}

func (s *Service) recordFailure(source string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.FetchFailures.WithLabelValues(source).Inc()
	}
}

// Snapshot returns the latest snapshot, computing the clock on demand if no
// tick has run yet.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snapshot
	ticked := s.ticked
	s.mu.RUnlock()

	if !ticked {
		now := s.wall.Now().UTC()
		snap.At = now
		snap.Clock = s.deps.Clock.Compute(now)
		snap.Active, _ = s.deps.Schedule.ForEpoch(snap.Clock.CurrentEpoch)
	}
	return snap
}

// Schedule returns the epoch table backing the service.
func (s *Service) Schedule() *epoch.Schedule {
	return s.deps.Schedule
}

// Subscribe registers an observer. The channel holds only the newest
// snapshot; slow readers skip intermediate ones. Call cancel to unsubscribe.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Service) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale snapshot nobody has read yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
