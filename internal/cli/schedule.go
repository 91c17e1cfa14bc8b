package cli

import (
	"github.com/spf13/cobra"
)

var scheduleAt string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the APY and reward pool of every epoch",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseAt(scheduleAt)
		if err != nil {
			return err
		}
		return getApp().PrintSchedule(at)
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", "Mark the epoch active at this instant (RFC3339, defaults to now)")
}
