package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/kryten/internal/dispatch"
)

// RecordDispatch inserts a dispatch record.
// Uses ON CONFLICT(id) DO NOTHING, so writing the same record twice is a
// no-op.
func (s *Store) RecordDispatch(ctx context.Context, r dispatch.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(id, seq, channel, element_index, status, value, command, builtin, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.Seq,
		r.Channel,
		r.Index,
		string(r.Status),
		r.Value,
		r.Command,
		r.Builtin,
		formatTime(r.At),
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// RecordExit stores how the launched command of dispatch id ended.
// The dispatch must already be recorded. Only the first result for a
// dispatch is kept.
func (s *Store) RecordExit(ctx context.Context, id string, o dispatch.Outcome, at time.Time) error {
	var errText string
	if o.Err != nil {
		errText = o.Err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launch_results (dispatch_id, exit_code, error, finished_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(dispatch_id) DO NOTHING
	`, id, o.ExitCode, errText, formatTime(at))
	if err != nil {
		return fmt.Errorf("record exit of %s: %w", id, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
