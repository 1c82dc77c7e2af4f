package source

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/variant"
)

// Translator turns script steps into callback items for every
// subscription of the step's channel, remembering each subscription's
// native field type from its last connect step. Safe for concurrent use.
type Translator struct {
	clock clockwork.Clock

	mu     sync.Mutex
	subs   map[string][]Subscription
	native map[callback.ChannelID]callback.FieldType
}

// NewTranslator creates a Translator for subs. Update timestamps come
// from clock.
func NewTranslator(subs []Subscription, clock clockwork.Clock) *Translator {
	t := &Translator{
		clock:  clock,
		subs:   make(map[string][]Subscription),
		native: make(map[callback.ChannelID]callback.FieldType),
	}
	for _, s := range subs {
		t.subs[s.Name] = append(t.subs[s.Name], s)
		t.native[s.ID] = s.Request
	}
	return t
}

// Subscribed reports whether any subscription monitors name.
func (t *Translator) Subscribed(name string) bool {
	return len(t.subs[name]) > 0
}

// Items returns one item per subscription of st.Channel, or a single item
// for a log step. Subscriptions whose item cannot be built are skipped and
// their errors joined.
func (t *Translator) Items(st Step) ([]callback.Item, error) {
	if st.Event == EventLog {
		return []callback.Item{callback.LogEvent{Text: st.Text}}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		items []callback.Item
		errs  []error
	)
	for _, sub := range t.subs[st.Channel] {
		item, err := t.item(sub, st)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}
	return items, errors.Join(errs...)
}

func (t *Translator) item(sub Subscription, st Step) (callback.Item, error) {
	switch st.Event {
	case EventConnect:
		ft := sub.Request
		if st.FieldType != "" {
			var err error
			if ft, err = ParseFieldType(st.FieldType); err != nil {
				return nil, err
			}
		}
		t.native[sub.ID] = ft
		count := st.Elements
		if count < 1 {
			count = 1
		}
		return callback.ConnectionEvent{
			Channel:      sub.ID,
			Up:           true,
			Host:         st.Host,
			FieldType:    ft,
			ElementCount: count,
		}, nil

	case EventDisconnect:
		return callback.ConnectionEvent{Channel: sub.ID}, nil

	case EventUpdate:
		return t.update(sub, st)
	}
	return nil, fmt.Errorf("unknown event %q", st.Event)
}

// update converts the step's values to the subscription's request type.
// Enum channels requested as strings deliver state indices with their
// state strings so the consumer can pick the representation; requested
// as numbers they deliver the state index in the requested type.
func (t *Translator) update(sub Subscription, st Step) (callback.Item, error) {
	native := t.native[sub.ID]
	if st.FieldType != "" {
		ft, err := ParseFieldType(st.FieldType)
		if err != nil {
			return nil, err
		}
		native = ft
	}

	delivered := sub.Request
	var enumStrings []string
	if native == callback.FieldEnum && sub.Request == callback.FieldString {
		delivered = callback.FieldEnum
		enumStrings = st.EnumStrings
	}

	var (
		values []variant.Value
		err    error
	)
	if native == callback.FieldEnum && delivered != callback.FieldEnum {
		values, err = enumValues(st.Texts(), st.EnumStrings, delivered)
	} else {
		values, err = Values(st.Texts(), delivered, enumStrings)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", st.Channel, err)
	}
	return callback.DataEvent{
		Channel: sub.ID,
		Update: callback.Update{
			FieldType:   delivered,
			Values:      values,
			EnumStrings: enumStrings,
			Status:      st.Status,
			Severity:    st.Severity,
			Timestamp:   t.clock.Now(),
		},
	}, nil
}

// enumValues reads enum states, by name or index, as numbers of type ft.
func enumValues(texts, enumStrings []string, ft callback.FieldType) ([]variant.Value, error) {
	states, err := Values(texts, callback.FieldEnum, enumStrings)
	if err != nil {
		return nil, err
	}
	for i, v := range states {
		n := v.(variant.Integer)
		switch ft {
		case callback.FieldFloat, callback.FieldDouble:
			states[i] = variant.Floating(n)
		default:
			states[i] = n
		}
	}
	return states, nil
}
