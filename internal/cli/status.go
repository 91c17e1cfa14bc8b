package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusAt string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the epoch countdown and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseAt(statusAt)
		if err != nil {
			return err
		}
		_, err = getApp().Status(at)
		return err
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAt, "at", "", "Evaluate at this instant (RFC3339, defaults to now)")
}

func parseAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at value: %w", err)
	}
	return at, nil
}
