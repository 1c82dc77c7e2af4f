// Package source defines the boundary to the system that delivers channel
// data, and the sources kryten ships with.
//
// A Source runs its own goroutines and reports connection changes, value
// updates and log text by enqueueing callback items on a Sink. It never
// calls into matching or dispatch directly.
package source

import (
	"context"

	"github.com/roach88/kryten/internal/callback"
)

// Subscription asks a Source to monitor one channel.
type Subscription struct {
	ID           callback.ChannelID
	Name         string
	ElementIndex int

	// Request is the field type values should be delivered as.
	Request callback.FieldType
}

// Sink receives items from source goroutines. callback.Queue is a Sink.
type Sink interface {
	Enqueue(item callback.Item) error
}

// Source connects subscriptions to a data system.
type Source interface {
	// Open starts monitoring subs. Items are delivered to sink from
	// goroutines owned by the source until Close.
	Open(ctx context.Context, subs []Subscription, sink Sink) error

	// Flush pushes any buffered outgoing requests. It is called once per
	// poll cycle.
	Flush() error

	// Close stops delivery and releases the subscriptions.
	Close() error
}

// Null is a Source whose channels never connect.
type Null struct{}

func (Null) Open(context.Context, []Subscription, Sink) error { return nil }
func (Null) Flush() error                                     { return nil }
func (Null) Close() error                                     { return nil }
