package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/kryten/internal/dispatch"
)

// Entry is a dispatch with its launch result, if any.
type Entry struct {
	dispatch.Record

	// Exit is nil for built-ins and for commands still running (or whose
	// result was never recorded).
	Exit *Exit
}

// Exit is a recorded launch result.
type Exit struct {
	ExitCode int
	Error    string
	At       time.Time
}

// Filter selects history entries.
type Filter struct {
	// Channel restricts entries to one channel name. Empty means all.
	Channel string

	// Limit keeps only the most recent N entries. Zero means no limit.
	Limit int
}

// ListDispatches returns matching entries ordered by seq ASC, id ASC.
// With a limit, the most recent entries are returned, still oldest first.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListDispatches(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Channel != "" {
		where = append(where, "d.channel = ?")
		args = append(args, f.Channel)
	}

	query := `
		SELECT d.id AS id, d.seq AS seq, d.channel, d.element_index, d.status, d.value, d.command,
		       d.builtin, d.dispatched_at, r.exit_code, r.error, r.finished_at
		FROM dispatches d
		LEFT JOIN launch_results r ON r.dispatch_id = d.id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	if f.Limit > 0 {
		query = "SELECT * FROM (" + query + "\n\t\tORDER BY d.seq DESC, d.id COLLATE BINARY DESC LIMIT ?)"
		args = append(args, f.Limit)
		query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	} else {
		query += "\n\t\tORDER BY d.seq ASC, d.id COLLATE BINARY ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		status     string
		dispatched string
		exitCode   sql.NullInt64
		exitErr    sql.NullString
		finished   sql.NullString
	)
	err := rows.Scan(
		&e.ID, &e.Seq, &e.Channel, &e.Index, &status, &e.Value, &e.Command,
		&e.Builtin, &dispatched, &exitCode, &exitErr, &finished,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan dispatch: %w", err)
	}
	e.Status = dispatch.Status(status)

	if e.At, err = time.Parse(time.RFC3339Nano, dispatched); err != nil {
		return Entry{}, fmt.Errorf("dispatch %s: bad timestamp %q: %w", e.ID, dispatched, err)
	}

	if exitCode.Valid {
		x := &Exit{ExitCode: int(exitCode.Int64), Error: exitErr.String}
		if x.At, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return Entry{}, fmt.Errorf("dispatch %s: bad exit timestamp %q: %w", e.ID, finished.String, err)
		}
		e.Exit = x
	}
	return e, nil
}
