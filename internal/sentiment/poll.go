package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"airdash/internal/storage"
)

// ErrInvalidVote is returned for anything other than bullish or bearish.
var ErrInvalidVote = errors.New("vote must be bullish or bearish")

// Vote is a voter's sentiment for one epoch.
type Vote string

const (
	Bullish Vote = "bullish"
	Bearish Vote = "bearish"
)

// ParseVote normalises s into a Vote.
func ParseVote(s string) (Vote, error) {
	switch Vote(strings.ToLower(strings.TrimSpace(s))) {
	case Bullish:
		return Bullish, nil
	case Bearish:
		return Bearish, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVote, s)
	}
}

// Tally counts votes for an epoch.
type Tally struct {
	Epoch   int   `json:"epoch"`
	Bullish int64 `json:"bullish"`
	Bearish int64 `json:"bearish"`
}

// Total is the number of votes cast.
func (t Tally) Total() int64 {
	return t.Bullish + t.Bearish
}

// BullishPercent is the bullish share of the total, zero when empty.
func (t Tally) BullishPercent() decimal.Decimal {
	return share(t.Bullish, t.Total())
}

// BearishPercent is the bearish share of the total, zero when empty.
func (t Tally) BearishPercent() decimal.Decimal {
	return share(t.Bearish, t.Total())
}

func share(part, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(decimal.NewFromInt(100)).DivRound(decimal.NewFromInt(total), 2)
}

// View is a tally plus the requesting voter's choice.
type View struct {
	Tally
	UserVote Vote `json:"user_vote,omitempty"`
}

// Baseline seeds every epoch's tally.
type Baseline struct {
	Bullish int64
	Bearish int64
}

// Poll keeps per-epoch tallies in memory and records each voter's choice in a
// preference store. Tallies are local to the process; counted remembers which
// side each voter occupies in them so a switch only moves a count this
// process actually added.
type Poll struct {
	store    storage.PreferenceStore
	baseline Baseline
	logger   zerolog.Logger

	mu      sync.Mutex
	tallies map[int]*Tally
	counted map[int]map[string]Vote
}

// NewPoll constructs a Poll.
func NewPoll(store storage.PreferenceStore, baseline Baseline, logger zerolog.Logger) *Poll {
	return &Poll{
		store:    store,
		baseline: baseline,
		logger:   logger.With().Str("component", "sentiment").Logger(),
		tallies:  make(map[int]*Tally),
		counted:  make(map[int]map[string]Vote),
	}
}

// View returns the tally for epoch and the voter's stored vote, if any.
func (p *Poll) View(ctx context.Context, voter string, epoch int) (View, error) {
	var current Vote
	if voter != "" {
		prev, ok, err := p.store.GetPreference(ctx, voter, storage.VoteKey(epoch))
		if err != nil {
			return View{}, fmt.Errorf("load vote: %w", err)
		}
		if ok {
			current = Vote(prev)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return View{Tally: *p.tallyLocked(epoch), UserVote: current}, nil
}

// Cast records voter's vote for epoch. Repeating the stored vote changes
// nothing; switching moves one count from the old side to the new one.
// The stored read, the comparison and the write run under one lock.
func (p *Poll) Cast(ctx context.Context, voter string, epoch int, vote Vote) (View, error) {
	if voter == "" {
		return View{}, errors.New("voter id required")
	}
	if vote != Bullish && vote != Bearish {
		return View{}, fmt.Errorf("%w: %q", ErrInvalidVote, vote)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := storage.VoteKey(epoch)
	raw, ok, err := p.store.GetPreference(ctx, voter, key)
	if err != nil {
		return View{}, fmt.Errorf("load vote: %w", err)
	}
	prev := Vote("")
	if ok {
		prev = Vote(raw)
	}

	tally := p.tallyLocked(epoch)
	if prev == vote {
		return View{Tally: *tally, UserVote: vote}, nil
	}

	if err := p.store.SetPreference(ctx, voter, key, string(vote)); err != nil {
		return View{}, fmt.Errorf("save vote: %w", err)
	}

	counted := p.countedLocked(epoch)
	if was, ok := counted[voter]; ok {
		tally.remove(was)
	}
	tally.add(vote)
	counted[voter] = vote

	p.logger.Info().Int("epoch", epoch).Str("vote", string(vote)).Str("previous", string(prev)).Msg("vote recorded")
	return View{Tally: *tally, UserVote: vote}, nil
}

func (p *Poll) tallyLocked(epoch int) *Tally {
	t, ok := p.tallies[epoch]
	if !ok {
		t = &Tally{Epoch: epoch, Bullish: p.baseline.Bullish, Bearish: p.baseline.Bearish}
		p.tallies[epoch] = t
	}
	return t
}

func (p *Poll) countedLocked(epoch int) map[string]Vote {
	c, ok := p.counted[epoch]
	if !ok {
		c = make(map[string]Vote)
		p.counted[epoch] = c
	}
	return c
}

func (t *Tally) add(v Vote) {
	switch v {
	case Bullish:
		t.Bullish++
	case Bearish:
		t.Bearish++
	}
}

// remove never takes a side below zero.
func (t *Tally) remove(v Vote) {
	switch v {
	case Bullish:
		if t.Bullish > 0 {
			t.Bullish--
		}
	case Bearish:
		if t.Bearish > 0 {
			t.Bearish--
		}
	}
}
