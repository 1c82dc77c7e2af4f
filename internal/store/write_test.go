package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kryten/internal/dispatch"
)

// Store must satisfy the dispatcher's history interface.
var _ dispatch.Recorder = (*Store)(nil)

func TestRecordDispatch_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord("d-1", "TANK", 1)
	require.NoError(t, s.RecordDispatch(ctx, rec))
	require.NoError(t, s.RecordDispatch(ctx, rec))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM dispatches").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecordDispatch_RejectsUnknownStatus(t *testing.T) {
	s := createTestStore(t)

	rec := createTestRecord("d-1", "TANK", 1)
	rec.Status = "exploded"
	assert.Error(t, s.RecordDispatch(context.Background(), rec))
}

func TestRecordExit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDispatch(ctx, createTestRecord("d-1", "TANK", 1)))
	require.NoError(t, s.RecordExit(ctx, "d-1", dispatch.Outcome{ExitCode: 2}, testEpoch))
	// Only the first result is kept.
	require.NoError(t, s.RecordExit(ctx, "d-1", dispatch.Outcome{ExitCode: 0}, testEpoch))

	var code int
	var errText string
	require.NoError(t, s.db.QueryRow(
		"SELECT exit_code, error FROM launch_results WHERE dispatch_id = ?", "d-1",
	).Scan(&code, &errText))
	assert.Equal(t, 2, code)
	assert.Empty(t, errText)
}

func TestRecordExit_StartError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDispatch(ctx, createTestRecord("d-1", "TANK", 1)))
	o := dispatch.Outcome{ExitCode: -1, Err: errors.New(`exec: "nope": executable file not found in $PATH`)}
	require.NoError(t, s.RecordExit(ctx, "d-1", o, testEpoch))

	entries, err := s.ListDispatches(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Exit)
	assert.Equal(t, -1, entries[0].Exit.ExitCode)
	assert.Contains(t, entries[0].Exit.Error, "executable file not found")
}

func TestRecordExit_UnknownDispatch(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordExit(context.Background(), "missing", dispatch.Outcome{}, testEpoch)
	assert.Error(t, err, "foreign key enforced")
}
