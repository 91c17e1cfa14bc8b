package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAt(t *testing.T) {
	at, err := parseAt("2025-08-02T17:15:00Z")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 8, 2, 17, 15, 0, 0, time.UTC), at)

	_, err = parseAt("yesterday")
	require.ErrorContains(t, err, "invalid --at value")

	now, err := parseAt("")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), now, time.Minute)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "schedule", "status", "vote", "export", "version"} {
		require.True(t, names[want], want)
	}
}
