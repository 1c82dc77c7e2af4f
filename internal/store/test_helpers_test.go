package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/kryten/internal/dispatch"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a launched match dispatch for channel.
func createTestRecord(id, channel string, seq int64) dispatch.Record {
	return dispatch.Record{
		ID:      id,
		Seq:     seq,
		Channel: channel,
		Index:   1,
		Status:  dispatch.StatusMatch,
		Value:   "3.000",
		Command: "/bin/notify " + channel + " match '3.000' 1",
		At:      testEpoch.Add(time.Duration(seq) * time.Second),
	}
}
