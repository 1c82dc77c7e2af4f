// Package callback hands events from data-source goroutines to the single
// goroutine that owns matching and dispatch.
//
// Producers call Queue.Enqueue from any goroutine. The poll loop calls
// Queue.ProcessBatch, which replays items in arrival order on the caller's
// goroutine. Items own their data: producers must not retain or mutate
// anything they enqueue.
package callback

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/kryten/internal/variant"
)

// ChannelID identifies a subscribed channel. IDs are assigned by the
// channel registry and are only meaningful to it.
type ChannelID int

// FieldType is the native type of a channel's value on the wire.
type FieldType int

const (
	FieldString FieldType = iota
	FieldShort
	FieldFloat
	FieldEnum
	FieldChar
	FieldLong
	FieldDouble
	FieldNoAccess
)

var fieldTypeNames = [...]string{
	FieldString:   "DBF_STRING",
	FieldShort:    "DBF_SHORT",
	FieldFloat:    "DBF_FLOAT",
	FieldEnum:     "DBF_ENUM",
	FieldChar:     "DBF_CHAR",
	FieldLong:     "DBF_LONG",
	FieldDouble:   "DBF_DOUBLE",
	FieldNoAccess: "DBF_NO_ACCESS",
}

func (f FieldType) String() string {
	if f >= 0 && int(f) < len(fieldTypeNames) {
		return fieldTypeNames[f]
	}
	return fmt.Sprintf("DBF_UNKNOWN(%d)", int(f))
}

// RequestFor returns the field type to subscribe with for rules that
// expect kind k.
func RequestFor(k variant.Kind) FieldType {
	switch k {
	case variant.KindString:
		return FieldString
	case variant.KindInteger:
		return FieldLong
	default:
		return FieldDouble
	}
}

// Item kinds, used for dispatch and as metric labels.
const (
	KindConnection = "connection"
	KindData       = "data"
	KindLog        = "log"
)

// Item is one queued callback.
type Item interface {
	ItemKind() string
}

// ConnectionEvent reports a channel connecting or disconnecting.
type ConnectionEvent struct {
	Channel ChannelID
	Up      bool

	// Host, FieldType and ElementCount describe the server side of the
	// channel. They are only set when Up is true.
	Host         string
	FieldType    FieldType
	ElementCount int
}

func (ConnectionEvent) ItemKind() string { return KindConnection }

// DataEvent carries a value update for a channel.
type DataEvent struct {
	Channel ChannelID
	Update  Update
}

func (DataEvent) ItemKind() string { return KindData }

// LogEvent carries a message produced on a data-source goroutine.
type LogEvent struct {
	Text string
}

func (LogEvent) ItemKind() string { return KindLog }

// Update is a channel value with its alarm and time metadata.
type Update struct {
	FieldType FieldType

	// Values holds one value per element. Enum fields carry Integer
	// state indices; EnumStrings names them.
	Values      []variant.Value
	EnumStrings []string

	Status    int
	Severity  int
	Timestamp time.Time
}

// Clone returns a copy that shares no slices with u.
func (u Update) Clone() Update {
	u.Values = slices.Clone(u.Values)
	u.EnumStrings = slices.Clone(u.EnumStrings)
	return u
}

// Element returns the value of 1-based element index, or false when the
// update has fewer elements.
func (u Update) Element(index int) (variant.Value, bool) {
	if index < 1 || index > len(u.Values) {
		return nil, false
	}
	return u.Values[index-1], true
}
