package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("debug", "json"))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init("warn", "console"))
	require.False(t, Logger().Core().Enabled(zap.InfoLevel))

	require.NoError(t, Init("", ""))
	require.True(t, Logger().Core().Enabled(zap.InfoLevel))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel))
}

func TestInitRejectsUnknownSettings(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })
	Replace(nil)

	require.ErrorContains(t, Init("nonsense", ""), "logger:")
	require.ErrorContains(t, Init("info", "xml"), `unknown format "xml"`)
	require.False(t, Logger().Core().Enabled(zap.ErrorLevel))
}

func TestWithModuleAnnotatesEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	WithModule("invites").Debug("invite expired", zap.String("team_id", "t1"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.Equal(t, "invites", entries[0].ContextMap()["module"])
	require.Equal(t, "t1", entries[0].ContextMap()["team_id"])
}
