package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kryten/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Channel  string
	Limit    int
}

// HistoryEntry is one dispatch in JSON output.
type HistoryEntry struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	At         string `json:"at"`
	Channel    string `json:"channel"`
	Index      int    `json:"index"`
	Status     string `json:"status"`
	Value      string `json:"value"`
	Command    string `json:"command"`
	Builtin    bool   `json:"builtin,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	Error      string `json:"error,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded dispatches",
		Long: `Show the dispatches recorded by "kryten run --db", oldest first, with
the exit status of each launched command.

Examples:
  kryten history --db ./history.db
  kryten history --db ./history.db --channel TANK:LEVEL --limit 20
  kryten history --db ./history.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "only show this channel")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only show the most recent N dispatches")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("limit must not be negative, got %d", opts.Limit))
	}
	// Opening would create an empty database.
	if _, err := os.Stat(opts.Database); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitFailure, fmt.Sprintf("history database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.ListDispatches(cmd.Context(), store.Filter{Channel: opts.Channel, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read history", err)
	}

	if opts.Format == "json" {
		out := make([]HistoryEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, historyEntry(e))
		}
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.Result(out, nil)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No dispatches recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "[%d] %s %-10s %s [%d] %s (%s)\n",
			e.Seq, e.At.UTC().Format(time.RFC3339), e.Status, e.Channel, e.Index, e.Command, outcome(e))
	}
	return nil
}

func historyEntry(e store.Entry) HistoryEntry {
	h := HistoryEntry{
		Seq:     e.Seq,
		ID:      e.ID,
		At:      e.At.UTC().Format(time.RFC3339Nano),
		Channel: e.Channel,
		Index:   e.Index,
		Status:  string(e.Status),
		Value:   e.Value,
		Command: e.Command,
		Builtin: e.Builtin,
	}
	if e.Exit != nil {
		code := e.Exit.ExitCode
		h.ExitCode = &code
		h.Error = e.Exit.Error
		h.FinishedAt = e.Exit.At.UTC().Format(time.RFC3339Nano)
	}
	return h
}

// outcome summarises how a dispatch ended.
func outcome(e store.Entry) string {
	switch {
	case e.Builtin:
		return "builtin"
	case e.Exit == nil:
		return "no result"
	case e.Exit.Error != "":
		return fmt.Sprintf("exit %d: %s", e.Exit.ExitCode, e.Exit.Error)
	}
	return fmt.Sprintf("exit %d", e.Exit.ExitCode)
}
