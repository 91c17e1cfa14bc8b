package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"airdash/internal/app"
)

var (
	voteEpoch int
	voteVoter string
	voteSide  string
)

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Cast a bullish or bearish sentiment vote for an epoch",
	RunE: func(cmd *cobra.Command, args []string) error {
		if voteEpoch <= 0 {
			return fmt.Errorf("--epoch must be greater than zero")
		}

		_, err := getApp().Vote(cmd.Context(), app.VoteOptions{
			Epoch: voteEpoch,
			Voter: voteVoter,
			Side:  voteSide,
		})
		return err
	},
}

func init() {
	voteCmd.Flags().IntVar(&voteEpoch, "epoch", 0, "Epoch number to vote on")
	voteCmd.Flags().StringVar(&voteVoter, "voter", "", "Voter identifier")
	voteCmd.Flags().StringVar(&voteSide, "side", "", "bullish or bearish")
}
