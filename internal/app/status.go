package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"airdash/internal/epoch"
)

// Status prints the countdown, progress and active rate for instant at.
func (a *App) Status(at time.Time) (epoch.State, error) {
	clock, schedule, err := a.newTimeline()
	if err != nil {
		return epoch.State{}, err
	}

	st := clock.Compute(at)
	active, ok := schedule.ForEpoch(st.CurrentEpoch)
	if !ok {
		return st, fmt.Errorf("epoch %d not in schedule", st.CurrentEpoch)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "At\t%s\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(writer, "Epoch\t%d of %d (%s)\n", st.CurrentEpoch, schedule.Len(), st.Phase)
	fmt.Fprintf(writer, "Window\t%s -> %s\n", st.EpochStart.Format(time.RFC3339), st.EpochEnd.Format(time.RFC3339))
	fmt.Fprintf(writer, "Time left\t%s\n", formatCountdown(st.Countdown))
	fmt.Fprintf(writer, "Progress\t%d%%\n", st.ProgressPercent)
	fmt.Fprintf(writer, "APY\t%s%%\n", active.APYPercent.StringFixed(1))
	fmt.Fprintf(writer, "Reward pool\t%s $AIR\n", active.RewardPool.StringFixed(0))
	if err := writer.Flush(); err != nil {
		return st, err
	}
	return st, nil
}

func formatCountdown(t epoch.TimeLeft) string {
	return fmt.Sprintf("%dd %02dh %02dm %02ds", t.Days, t.Hours, t.Minutes, t.Seconds)
}
