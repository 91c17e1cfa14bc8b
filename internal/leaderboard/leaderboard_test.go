package leaderboard

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustHolder(t *testing.T, addr, bal string) Holder {
	t.Helper()
	h, err := ParseHolder(addr, bal)
	require.NoError(t, err)
	return h
}

func TestParseHolderRejects(t *testing.T) {
	_, err := ParseHolder("0x1234", "10")
	require.Error(t, err)

	_, err = ParseHolder("0x742d35Cc6527C4E7E43B60CfA84556E0e5b7E0E9", "lots")
	require.Error(t, err)

	_, err = ParseHolder("0x742d35Cc6527C4E7E43B60CfA84556E0e5b7E0E9", "-1")
	require.Error(t, err)
}

func TestBuildRanksAndShares(t *testing.T) {
	holders := []Holder{
		mustHolder(t, "0x1122334455667788990011223344556677889900", "4321098.75"),
		mustHolder(t, "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", "12458392.50"),
		mustHolder(t, "0x9988776655443322110099887766554433221100", "8923156.75"),
	}

	entries := Build(holders, decimal.NewFromInt(200_000_000), 2)
	require.Len(t, entries, 2)

	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "0xDeaDbeefdEAdbeefdEadbEEFdeadbeEFdEaDbeeF", entries[0].Address)
	require.Equal(t, "0xDeaD...beeF", entries[0].Short)
	require.True(t, entries[0].SharePct.Equal(decimal.RequireFromString("6.23")), "share %s", entries[0].SharePct)

	require.Equal(t, 2, entries[1].Rank)
	require.True(t, entries[1].Balance.Equal(decimal.RequireFromString("8923156.75")))
}

func TestBuildWithoutSupply(t *testing.T) {
	entries := Build([]Holder{mustHolder(t, "0x1122334455667788990011223344556677889900", "1")}, decimal.Zero, 0)
	require.Len(t, entries, 1)
	require.True(t, entries[0].SharePct.IsZero())
}

func TestShorten(t *testing.T) {
	require.Equal(t, "0x8164...b288", Shorten("0x8164B40840418C77A68F6f9EEdB5202b36d8b288"))
	require.Equal(t, "0x12", Shorten("0x12"))
}
