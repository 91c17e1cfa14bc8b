package app

import (
	"context"
	"errors"
	"fmt"

	"airdash/internal/sentiment"
)

// VoteOptions configure the vote command.
type VoteOptions struct {
	Epoch int
	Voter string
	Side  string
}

// Vote records a sentiment vote and prints the resulting tally.
func (a *App) Vote(ctx context.Context, opts VoteOptions) (sentiment.View, error) {
	if opts.Voter == "" {
		return sentiment.View{}, errors.New("--voter is required")
	}
	vote, err := sentiment.ParseVote(opts.Side)
	if err != nil {
		return sentiment.View{}, err
	}

	_, schedule, err := a.newTimeline()
	if err != nil {
		return sentiment.View{}, err
	}
	if _, ok := schedule.ForEpoch(opts.Epoch); !ok {
		return sentiment.View{}, fmt.Errorf("epoch %d not in schedule (1-%d)", opts.Epoch, schedule.Len())
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return sentiment.View{}, err
	}
	defer closeStore()

	view, err := a.newPoll(store).Cast(ctx, opts.Voter, opts.Epoch, vote)
	if err != nil {
		return sentiment.View{}, err
	}

	fmt.Fprintf(a.Out, "epoch %d: bullish %d (%s%%) / bearish %d (%s%%), your vote: %s\n",
		view.Epoch,
		view.Bullish, view.BullishPercent().StringFixed(2),
		view.Bearish, view.BearishPercent().StringFixed(2),
		view.UserVote,
	)
	return view, nil
}
