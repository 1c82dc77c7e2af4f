package match

import (
	"time"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/rules"
	"github.com/roach88/kryten/internal/variant"
)

// State is a channel's classification against its rules.
type State int

const (
	// StateUnknown is the initial state. It equals neither terminal state,
	// so the first update always dispatches.
	StateUnknown State = iota
	StateMatched
	StateUnmatched
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateMatched:
		return "matched"
	case StateUnmatched:
		return "unmatched"
	}
	return "invalid"
}

// Channel is one registered channel and everything observed about it.
//
// Channels are owned by the Engine and only touched from the poll
// goroutine.
type Channel struct {
	ID      callback.ChannelID
	Name    string
	Index   int
	Rules   *rules.Set
	Command string

	// Source and Line locate the configuration entry.
	Source string
	Line   int

	State State

	Connected     bool
	EverConnected bool
	Host          string
	FieldType     callback.FieldType
	ElementCount  int

	// Most recent update.
	Value     variant.Value
	Status    int
	Severity  int
	Timestamp time.Time
	Updates   int
}

// Request returns the field type to subscribe with: the type matching the
// kind of the first rule's lower bound.
func (c *Channel) Request() callback.FieldType {
	return callback.RequestFor(c.Rules.Expected())
}
