package app

import (
	"fmt"
	"text/tabwriter"
	"time"
)

// PrintSchedule writes the epoch table with the epoch active at `at` marked.
func (a *App) PrintSchedule(at time.Time) error {
	clock, schedule, err := a.newTimeline()
	if err != nil {
		return err
	}
	current := clock.Compute(at).CurrentEpoch

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, " \tEpoch\tAPY%\tReward Pool ($AIR)\tStart (UTC)\tEnd (UTC)")

	for _, def := range schedule.Epochs() {
		marker := ""
		if def.Number == current {
			marker = "*"
		}
		start, end := "-", "-"
		if def.Number >= clock.Config().MinEpoch {
			s, e := clock.Bounds(def.Number)
			start, end = s.Format(time.RFC3339), e.Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%s\n",
			marker,
			def.Number,
			def.APYPercent.StringFixed(1),
			def.RewardPool.StringFixed(0),
			start,
			end,
		)
	}

	return writer.Flush()
}
