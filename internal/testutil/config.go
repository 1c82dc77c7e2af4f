package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kryten/internal/config"
)

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MustEntries parses configuration text and fails the test on any error
// diagnostic.
func MustEntries(t testing.TB, text string) []config.Entry {
	t.Helper()
	res, err := config.ScanString(text, DiscardLogger())
	require.NoError(t, err)
	require.Zero(t, res.Errors(), "configuration errors: %v", res.Diagnostics)
	return res.Entries
}

// MustEntry parses a single configuration entry.
func MustEntry(t testing.TB, line string) config.Entry {
	t.Helper()
	entries := MustEntries(t, line)
	require.Len(t, entries, 1)
	return entries[0]
}
