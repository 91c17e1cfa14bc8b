package sentiment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"airdash/internal/storage"
)

func newTestPoll() (*Poll, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewPoll(store, Baseline{Bullish: 342, Bearish: 158}, zerolog.Nop()), store
}

func TestParseVote(t *testing.T) {
	v, err := ParseVote(" Bullish ")
	require.NoError(t, err)
	require.Equal(t, Bullish, v)

	_, err = ParseVote("sideways")
	require.True(t, errors.Is(err, ErrInvalidVote))
}

func TestCastFirstVote(t *testing.T) {
	ctx := context.Background()
	poll, store := newTestPoll()

	view, err := poll.Cast(ctx, "alice", 2, Bullish)
	require.NoError(t, err)
	require.Equal(t, int64(343), view.Bullish)
	require.Equal(t, int64(158), view.Bearish)
	require.Equal(t, int64(501), view.Total())
	require.Equal(t, Bullish, view.UserVote)

	saved, ok, err := store.GetPreference(ctx, "alice", storage.VoteKey(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bullish", saved)
}

func TestCastRepeatIsNoop(t *testing.T) {
	ctx := context.Background()
	poll, _ := newTestPoll()

	_, err := poll.Cast(ctx, "alice", 2, Bearish)
	require.NoError(t, err)
	view, err := poll.Cast(ctx, "alice", 2, Bearish)
	require.NoError(t, err)
	require.Equal(t, int64(159), view.Bearish)
	require.Equal(t, int64(501), view.Total())
}

func TestCastSwitchMovesCount(t *testing.T) {
	ctx := context.Background()
	poll, _ := newTestPoll()

	_, err := poll.Cast(ctx, "alice", 2, Bullish)
	require.NoError(t, err)
	view, err := poll.Cast(ctx, "alice", 2, Bearish)
	require.NoError(t, err)

	require.Equal(t, int64(342), view.Bullish)
	require.Equal(t, int64(159), view.Bearish)
	require.Equal(t, int64(501), view.Total())
	require.Equal(t, Bearish, view.UserVote)
}

func TestEpochsAreIndependent(t *testing.T) {
	ctx := context.Background()
	poll, _ := newTestPoll()

	_, err := poll.Cast(ctx, "alice", 2, Bullish)
	require.NoError(t, err)

	view, err := poll.View(ctx, "alice", 3)
	require.NoError(t, err)
	require.Equal(t, int64(342), view.Bullish)
	require.Empty(t, view.UserVote)

	view, err = poll.View(ctx, "alice", 2)
	require.NoError(t, err)
	require.Equal(t, Bullish, view.UserVote)
}

func TestCastRejects(t *testing.T) {
	poll, _ := newTestPoll()
	_, err := poll.Cast(context.Background(), "", 2, Bullish)
	require.Error(t, err)

	_, err = poll.Cast(context.Background(), "alice", 2, Vote("moon"))
	require.True(t, errors.Is(err, ErrInvalidVote))
}

func TestTallyPercentages(t *testing.T) {
	tally := Tally{Bullish: 342, Bearish: 158}
	require.True(t, tally.BullishPercent().Equal(decimal.RequireFromString("68.4")))
	require.True(t, tally.BearishPercent().Equal(decimal.RequireFromString("31.6")))

	require.True(t, Tally{}.BullishPercent().IsZero())
}

type slowStore struct {
	*storage.MemoryStore
	delay time.Duration
}

func (s slowStore) GetPreference(ctx context.Context, owner, key string) (string, bool, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.GetPreference(ctx, owner, key)
}

func TestConcurrentCastCountsOnce(t *testing.T) {
	ctx := context.Background()
	store := slowStore{MemoryStore: storage.NewMemoryStore(), delay: 10 * time.Millisecond}
	poll := NewPoll(store, Baseline{Bullish: 342, Bearish: 158}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := poll.Cast(ctx, "alice", 2, Bullish)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := poll.View(ctx, "alice", 2)
	require.NoError(t, err)
	require.Equal(t, int64(343), view.Bullish)
	require.Equal(t, int64(501), view.Total())
}

func TestSwitchAfterRestartOnlyAddsNewSide(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := NewPoll(store, Baseline{}, zerolog.Nop())
	_, err := first.Cast(ctx, "alice", 2, Bullish)
	require.NoError(t, err)

	restarted := NewPoll(store, Baseline{}, zerolog.Nop())
	view, err := restarted.Cast(ctx, "alice", 2, Bearish)
	require.NoError(t, err)
	require.Equal(t, int64(0), view.Bullish)
	require.Equal(t, int64(1), view.Bearish)
	require.Equal(t, Bearish, view.UserVote)

	view, err = restarted.Cast(ctx, "alice", 2, Bullish)
	require.NoError(t, err)
	require.Equal(t, int64(1), view.Bullish)
	require.Equal(t, int64(0), view.Bearish)
}

func TestRepeatAfterRestartIsNoop(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	_, err := NewPoll(store, Baseline{Bullish: 342, Bearish: 158}, zerolog.Nop()).Cast(ctx, "alice", 2, Bullish)
	require.NoError(t, err)

	view, err := NewPoll(store, Baseline{Bullish: 342, Bearish: 158}, zerolog.Nop()).Cast(ctx, "alice", 2, Bullish)
	require.NoError(t, err)
	require.Equal(t, int64(342), view.Bullish)
	require.Equal(t, Bullish, view.UserVote)
}
