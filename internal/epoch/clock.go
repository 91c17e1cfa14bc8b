package epoch

import (
	"fmt"
	"math"
	"time"
)

// Phase describes where an instant falls relative to the epoch range.
type Phase string

const (
	// PhasePending means the instant precedes the anchor.
	PhasePending Phase = "pending"
	// PhaseActive means an epoch is running.
	PhaseActive Phase = "active"
	// PhaseComplete means the last epoch has ended.
	PhaseComplete Phase = "complete"
)

// ClockConfig fixes the epoch timeline.
type ClockConfig struct {
	AnchorEpoch int
	AnchorStart time.Time
	Duration    time.Duration
	MinEpoch    int
	MaxEpoch    int
}

// Validate rejects timelines the clock cannot compute against.
func (c ClockConfig) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: epoch duration must be positive", ErrInvalidConfig)
	}
	if c.MinEpoch < 1 {
		return fmt.Errorf("%w: min epoch must be at least 1", ErrInvalidConfig)
	}
	if c.MinEpoch > c.MaxEpoch {
		return fmt.Errorf("%w: min epoch %d exceeds max epoch %d", ErrInvalidConfig, c.MinEpoch, c.MaxEpoch)
	}
	if c.AnchorEpoch < c.MinEpoch || c.AnchorEpoch > c.MaxEpoch {
		return fmt.Errorf("%w: anchor epoch %d outside [%d, %d]", ErrInvalidConfig, c.AnchorEpoch, c.MinEpoch, c.MaxEpoch)
	}
	if c.AnchorStart.IsZero() {
		return fmt.Errorf("%w: anchor start not set", ErrInvalidConfig)
	}
	return nil
}

// TimeLeft is a countdown broken into display units. Days do not roll over.
type TimeLeft struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// State is the clock snapshot for one instant.
type State struct {
	CurrentEpoch    int           `json:"current_epoch"`
	Phase           Phase         `json:"phase"`
	EpochStart      time.Time     `json:"epoch_start"`
	EpochEnd        time.Time     `json:"epoch_end"`
	TimeLeft        time.Duration `json:"-"`
	TimeLeftMs      int64         `json:"time_left_ms"`
	Countdown       TimeLeft      `json:"countdown"`
	ProgressPercent int           `json:"progress_percent"`
}

// Compute derives the clock state at now. cfg should come through Validate;
// a non-positive Duration yields a pending state with an empty window instead
// of dividing by zero.
//
// Instants before the anchor report MinEpoch with zero progress, but the
// window is the anchor epoch's, the first window the clock will run. While
// pending, EpochStart therefore differs from Bounds(CurrentEpoch) whenever
// MinEpoch < AnchorEpoch. Instants past MaxEpoch's end hold at MaxEpoch with
// full progress.
func Compute(now time.Time, cfg ClockConfig) State {
	now = now.UTC()
	anchor := cfg.AnchorStart.UTC()

	if cfg.Duration <= 0 {
		return State{
			CurrentEpoch: cfg.MinEpoch,
			Phase:        PhasePending,
			EpochStart:   anchor,
			EpochEnd:     anchor,
		}
	}

	if now.Before(anchor) {
		return State{
			CurrentEpoch:    cfg.MinEpoch,
			Phase:           PhasePending,
			EpochStart:      anchor,
			EpochEnd:        anchor.Add(cfg.Duration),
			TimeLeft:        cfg.Duration,
			TimeLeftMs:      cfg.Duration.Milliseconds(),
			Countdown:       splitDuration(cfg.Duration),
			ProgressPercent: 0,
		}
	}

	elapsed := int64(now.Sub(anchor) / cfg.Duration)
	phase := PhaseActive
	if last := int64(cfg.MaxEpoch - cfg.AnchorEpoch); elapsed > last {
		elapsed = last
		phase = PhaseComplete
	}

	start := anchor.Add(time.Duration(elapsed) * cfg.Duration)
	end := start.Add(cfg.Duration)

	left := end.Sub(now)
	if left < 0 {
		left = 0
	}

	return State{
		CurrentEpoch:    clamp(cfg.AnchorEpoch+int(elapsed), cfg.MinEpoch, cfg.MaxEpoch),
		Phase:           phase,
		EpochStart:      start,
		EpochEnd:        end,
		TimeLeft:        left,
		TimeLeftMs:      left.Milliseconds(),
		Countdown:       splitDuration(left),
		ProgressPercent: progress(cfg.Duration, left),
	}
}

// Clock binds a validated ClockConfig.
type Clock struct {
	cfg ClockConfig
}

// NewClock validates cfg.
func NewClock(cfg ClockConfig) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Clock{cfg: cfg}, nil
}

// Config returns the bound timeline.
func (c *Clock) Config() ClockConfig {
	return c.cfg
}

// Compute derives the clock state at now.
func (c *Clock) Compute(now time.Time) State {
	return Compute(now, c.cfg)
}

// Bounds returns the start and end of epoch n on this timeline.
func (c *Clock) Bounds(n int) (time.Time, time.Time) {
	start := c.cfg.AnchorStart.UTC().Add(time.Duration(n-c.cfg.AnchorEpoch) * c.cfg.Duration)
	return start, start.Add(c.cfg.Duration)
}

func splitDuration(d time.Duration) TimeLeft {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	const (
		day    = int64(24 * time.Hour / time.Millisecond)
		hour   = int64(time.Hour / time.Millisecond)
		minute = int64(time.Minute / time.Millisecond)
		second = int64(time.Second / time.Millisecond)
	)
	return TimeLeft{
		Days:    ms / day,
		Hours:   (ms % day) / hour,
		Minutes: (ms % hour) / minute,
		Seconds: (ms % minute) / second,
	}
}

func progress(duration, left time.Duration) int {
	pct := float64(duration-left) / float64(duration) * 100
	pct = math.Max(0, math.Min(100, pct))
	return int(math.Round(pct))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
