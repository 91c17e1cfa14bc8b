package epoch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testAnchor = time.Date(2025, 8, 1, 17, 15, 0, 0, time.UTC)

func testClockConfig() ClockConfig {
	return ClockConfig{
		AnchorEpoch: 2,
		AnchorStart: testAnchor,
		Duration:    72 * time.Hour,
		MinEpoch:    2,
		MaxEpoch:    11,
	}
}

func TestComputeAtAnchor(t *testing.T) {
	cfg := testClockConfig()
	st := Compute(testAnchor, cfg)

	require.Equal(t, 2, st.CurrentEpoch)
	require.Equal(t, PhaseActive, st.Phase)
	require.Equal(t, 0, st.ProgressPercent)
	require.Equal(t, cfg.Duration, st.TimeLeft)
	require.Equal(t, TimeLeft{Days: 3}, st.Countdown)
	require.True(t, st.EpochStart.Equal(testAnchor))
	require.True(t, st.EpochEnd.Equal(testAnchor.Add(cfg.Duration)))
}

func TestComputeLastMillisecond(t *testing.T) {
	cfg := testClockConfig()
	st := Compute(testAnchor.Add(cfg.Duration-time.Millisecond), cfg)

	require.Equal(t, 2, st.CurrentEpoch)
	require.Equal(t, 100, st.ProgressPercent)
	require.Equal(t, time.Millisecond, st.TimeLeft)
	require.Equal(t, int64(1), st.TimeLeftMs)
	require.Equal(t, TimeLeft{}, st.Countdown)
}

func TestComputeOneDayIn(t *testing.T) {
	cfg := testClockConfig()
	st := Compute(time.Date(2025, 8, 2, 17, 15, 0, 0, time.UTC), cfg)

	require.Equal(t, 2, st.CurrentEpoch)
	require.Equal(t, 33, st.ProgressPercent)
	require.Equal(t, TimeLeft{Days: 2}, st.Countdown)
}

func TestComputeBoundaryAdvances(t *testing.T) {
	cfg := testClockConfig()
	st := Compute(testAnchor.Add(cfg.Duration), cfg)

	require.Equal(t, 3, st.CurrentEpoch)
	require.Equal(t, 0, st.ProgressPercent)
	require.True(t, st.EpochStart.Equal(testAnchor.Add(cfg.Duration)))
}

func TestComputeCountdownUnits(t *testing.T) {
	cfg := testClockConfig()
	now := testAnchor.Add(72*time.Hour - (26*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Millisecond))
	st := Compute(now, cfg)

	require.Equal(t, TimeLeft{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}, st.Countdown)
}

func TestComputeTerminal(t *testing.T) {
	cfg := testClockConfig()
	now := testAnchor.Add(365 * 24 * time.Hour)
	st := Compute(now, cfg)

	require.Equal(t, 11, st.CurrentEpoch)
	require.Equal(t, PhaseComplete, st.Phase)
	require.Equal(t, 100, st.ProgressPercent)
	require.Equal(t, time.Duration(0), st.TimeLeft)

	lastStart := testAnchor.Add(9 * cfg.Duration)
	require.True(t, st.EpochStart.Equal(lastStart), "start %s", st.EpochStart)
	require.True(t, st.EpochEnd.Equal(lastStart.Add(cfg.Duration)))

	require.Equal(t, st, Compute(now.Add(time.Hour), cfg))
}

func TestComputeBeforeAnchor(t *testing.T) {
	cfg := testClockConfig()
	cfg.MinEpoch = 1
	st := Compute(testAnchor.Add(-time.Hour), cfg)

	require.Equal(t, 1, st.CurrentEpoch)
	require.Equal(t, PhasePending, st.Phase)
	require.Equal(t, 0, st.ProgressPercent)
	require.Equal(t, cfg.Duration, st.TimeLeft)
	require.True(t, st.EpochStart.Equal(testAnchor))

	clock, err := NewClock(cfg)
	require.NoError(t, err)
	anchorStart, anchorEnd := clock.Bounds(cfg.AnchorEpoch)
	require.True(t, st.EpochStart.Equal(anchorStart))
	require.True(t, st.EpochEnd.Equal(anchorEnd))
}

func TestComputeNonPositiveDuration(t *testing.T) {
	cfg := testClockConfig()
	for _, d := range []time.Duration{0, -time.Hour} {
		cfg.Duration = d
		st := Compute(testAnchor.Add(time.Hour), cfg)
		require.Equal(t, cfg.MinEpoch, st.CurrentEpoch)
		require.Equal(t, PhasePending, st.Phase)
		require.Equal(t, 0, st.ProgressPercent)
		require.Zero(t, st.TimeLeft)
	}
}

func TestComputeIdempotent(t *testing.T) {
	cfg := testClockConfig()
	now := time.Date(2025, 8, 9, 3, 21, 7, 123_000_000, time.UTC)
	require.Equal(t, Compute(now, cfg), Compute(now, cfg))
}

func TestComputeNormalisesZone(t *testing.T) {
	cfg := testClockConfig()
	zone := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2025, 8, 3, 1, 15, 0, 0, zone)

	require.Equal(t, Compute(now.UTC(), cfg), Compute(now, cfg))
}

func TestClockConfigValidate(t *testing.T) {
	cases := map[string]func(c *ClockConfig){
		"zero duration":   func(c *ClockConfig) { c.Duration = 0 },
		"min above max":   func(c *ClockConfig) { c.MinEpoch = 12 },
		"min below one":   func(c *ClockConfig) { c.MinEpoch = 0 },
		"anchor past max": func(c *ClockConfig) { c.AnchorEpoch = 12 },
		"missing anchor":  func(c *ClockConfig) { c.AnchorStart = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testClockConfig()
			mutate(&cfg)
			_, err := NewClock(cfg)
			require.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestClockBounds(t *testing.T) {
	clk, err := NewClock(testClockConfig())
	require.NoError(t, err)

	start, end := clk.Bounds(1)
	require.True(t, start.Equal(testAnchor.Add(-72*time.Hour)))
	require.True(t, end.Equal(testAnchor))

	st := clk.Compute(testAnchor.Add(100 * time.Hour))
	start, end = clk.Bounds(st.CurrentEpoch)
	require.True(t, start.Equal(st.EpochStart))
	require.True(t, end.Equal(st.EpochEnd))
}
