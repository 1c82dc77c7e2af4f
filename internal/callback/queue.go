package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/kryten/internal/metrics"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("callback queue closed")

	// ErrQueueFull is returned by Enqueue when a limit is set and reached.
	ErrQueueFull = errors.New("callback queue full")
)

// Handler consumes items on the poll goroutine. Handlers must not enqueue
// and then wait on the same queue.
type Handler interface {
	HandleConnection(ctx context.Context, e ConnectionEvent)
	HandleData(ctx context.Context, e DataEvent)
	HandleLog(ctx context.Context, e LogEvent)
}

// Handlers adapts plain functions to Handler. Nil fields ignore their
// items.
type Handlers struct {
	Connection func(ctx context.Context, e ConnectionEvent)
	Data       func(ctx context.Context, e DataEvent)
	Log        func(ctx context.Context, e LogEvent)
}

func (h Handlers) HandleConnection(ctx context.Context, e ConnectionEvent) {
	if h.Connection != nil {
		h.Connection(ctx, e)
	}
}

func (h Handlers) HandleData(ctx context.Context, e DataEvent) {
	if h.Data != nil {
		h.Data(ctx, e)
	}
}

func (h Handlers) HandleLog(ctx context.Context, e LogEvent) {
	if h.Log != nil {
		h.Log(ctx, e)
	}
}

// Queue is a FIFO of callback items with many producers and one consumer.
//
// The queue is unbounded unless WithLimit is given. A full or closed queue
// rejects items with an error instead of blocking the producer.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	closed bool

	limit  int
	logger *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLimit bounds the queue to n items. n <= 0 means unbounded.
func WithLimit(n int) QueueOption {
	return func(q *Queue) {
		q.limit = n
	}
}

// WithLogger sets the logger used for dropped items.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = l
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		items:  make([]Item, 0, 64),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends item to the tail. Safe for concurrent use.
func (q *Queue) Enqueue(item Item) error {
	if item == nil {
		return errors.New("enqueue nil item")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.QueueItemsTotal.WithLabelValues(item.ItemKind(), "rejected").Inc()
		return ErrQueueClosed
	}
	if q.limit > 0 && len(q.items) >= q.limit {
		metrics.QueueItemsTotal.WithLabelValues(item.ItemKind(), "rejected").Inc()
		return fmt.Errorf("%w: %d items", ErrQueueFull, len(q.items))
	}

	q.items = append(q.items, item)
	metrics.QueueItemsTotal.WithLabelValues(item.ItemKind(), "enqueued").Inc()
	metrics.QueueDepth.Set(float64(len(q.items)))
	return nil
}

// dequeue removes the head item.
func (q *Queue) dequeue() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	// Clear the slot so the backing array does not pin the payload.
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	metrics.QueueDepth.Set(float64(len(q.items)))
	return item, true
}

// ProcessBatch dequeues items in FIFO order and passes each to h, until maxItems
// items have been processed or the queue is empty. At least one item is
// processed when any is present, whatever maxItems is. The lock is not held
// while h runs. Returns the number of items processed.
//
// ProcessBatch must only be called from the consumer goroutine.
func (q *Queue) ProcessBatch(ctx context.Context, maxItems int, h Handler) int {
	n := 0
	for n == 0 || n < maxItems {
		item, ok := q.dequeue()
		if !ok {
			break
		}
		n++
		q.handle(ctx, item, h)
	}
	return n
}

func (q *Queue) handle(ctx context.Context, item Item, h Handler) {
	kind := item.ItemKind()
	switch e := item.(type) {
	case ConnectionEvent:
		h.HandleConnection(ctx, e)
	case DataEvent:
		h.HandleData(ctx, e)
	case LogEvent:
		h.HandleLog(ctx, e)
	default:
		q.logger.Error("unknown callback item dropped", "kind", kind, "type", fmt.Sprintf("%T", item))
		metrics.QueueItemsTotal.WithLabelValues(kind, "unknown").Inc()
		return
	}
	metrics.QueueItemsTotal.WithLabelValues(kind, "processed").Inc()
}

// Depth returns the number of queued items. It is advisory: producers may
// change it at any time.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue accepting items. Items already queued can still
// be processed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
