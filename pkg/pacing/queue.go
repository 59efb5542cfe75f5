// Package pacing turns bursts of traversal output into a chat stream.
//
// Items are released strictly in enqueue order by a single consumer loop (Run).
// Bot items wait a typing delay before release; items that qualify for immediate
// processing (always the respondent's own messages) are released without delay,
// but never ahead of items enqueued before them.
package pacing

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/google/uuid"
)

// Item is a display event waiting for release. Priority is carried for the
// renderer and never reorders the queue.
type Item struct {
	domain.DisplayEvent
	Priority int `json:"priority,omitempty"`
}

// FromEvent wraps a display event.
func FromEvent(ev domain.DisplayEvent) Item {
	return Item{DisplayEvent: ev}
}

// DelayFunc computes the raw typing delay of an item.
type DelayFunc func(Item) time.Duration

// PerCharacter returns a DelayFunc proportional to the text length.
// Non-text items get no raw delay (the minimum still applies).
func PerCharacter(perChar time.Duration) DelayFunc {
	return func(it Item) time.Duration {
		if it.Kind != domain.KindText && it.Kind != "" {
			return 0
		}
		return time.Duration(utf8.RuneCountInString(it.Content)) * perChar
	}
}

// Defaults used by New.
const (
	DefaultPerChar  = 25 * time.Millisecond
	DefaultMaxDelay = 4 * time.Second
)

// Ticket resolves when its item has been released.
type Ticket struct {
	ID   string
	done chan struct{}
}

// Done is closed when the item is released. It is never closed for items dropped by Clear.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the item is released or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type entry struct {
	item   Item
	ticket *Ticket
}

// Queue is the per-session pacing queue.
type Queue struct {
	mu      sync.Mutex
	items   []*entry
	current *entry
	cleared chan struct{}
	wake    chan struct{}

	release   func(Item)
	delay     DelayFunc
	immediate func(Item) bool
	minDelay  time.Duration
	maxDelay  time.Duration
	onDepth   func(int)
	logger    *slog.Logger
}

// Option configures the queue.
type Option func(*Queue)

// WithRelease sets the consumer callback. It is called from Run, one item at a time.
func WithRelease(fn func(Item)) Option {
	return func(q *Queue) {
		q.release = fn
	}
}

// WithDelayFunc replaces the per-character delay.
func WithDelayFunc(fn DelayFunc) Option {
	return func(q *Queue) {
		q.delay = fn
	}
}

// WithBounds sets the clamp applied to computed delays.
func WithBounds(minDelay, maxDelay time.Duration) Option {
	return func(q *Queue) {
		q.minDelay = minDelay
		q.maxDelay = maxDelay
	}
}

// WithImmediate adds a predicate for items that skip the delay.
// Respondent items always skip it.
func WithImmediate(fn func(Item) bool) Option {
	return func(q *Queue) {
		q.immediate = fn
	}
}

// WithDepthObserver is called with the queue size after every change.
func WithDepthObserver(fn func(int)) Option {
	return func(q *Queue) {
		q.onDepth = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// New creates a queue. Call Run to start releasing items.
func New(opts ...Option) *Queue {
	q := &Queue{
		cleared:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		release:  func(Item) {},
		delay:    PerCharacter(DefaultPerChar),
		maxDelay: DefaultMaxDelay,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// ShouldProcessImmediately reports whether it bypasses the typing delay.
func (q *Queue) ShouldProcessImmediately(it Item) bool {
	if it.Sender == domain.SenderUser {
		return true
	}
	return q.immediate != nil && q.immediate(it)
}

// Delay returns the wait applied before it is released.
func (q *Queue) Delay(it Item) time.Duration {
	if q.ShouldProcessImmediately(it) {
		return 0
	}
	d := q.delay(it)
	if d < q.minDelay {
		d = q.minDelay
	}
	if q.maxDelay > 0 && d > q.maxDelay {
		d = q.maxDelay
	}
	return d
}

// Enqueue appends an item and returns its ticket. It never blocks on pending delays.
func (q *Queue) Enqueue(it Item) *Ticket {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	t := &Ticket{ID: it.ID, done: make(chan struct{})}

	q.mu.Lock()
	q.items = append(q.items, &entry{item: it, ticket: t})
	size := len(q.items)
	q.mu.Unlock()

	q.notifyDepth(size)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t
}

// QueueSize is the number of items not yet picked up by the consumer.
func (q *Queue) QueueSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsProcessing reports whether an item is waiting out its delay.
func (q *Queue) IsProcessing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current != nil
}

// Clear drops every undelivered item, including one waiting out its delay.
// Tickets of dropped items are never resolved.
func (q *Queue) Clear() {
	q.mu.Lock()
	dropped := len(q.items)
	if q.current != nil {
		dropped++
	}
	q.items = nil
	q.current = nil
	close(q.cleared)
	q.cleared = make(chan struct{})
	q.mu.Unlock()

	q.logger.Debug("pacing queue cleared", "dropped", dropped)
	q.notifyDepth(0)
}

// Run releases items until ctx ends.
func (q *Queue) Run(ctx context.Context) error {
	for {
		e, cleared, ok := q.next(ctx)
		if !ok {
			return ctx.Err()
		}

		if d := q.Delay(e.item); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-cleared:
				timer.Stop()
				continue
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		q.mu.Lock()
		if q.current != e {
			// Cleared while the delay was elapsing or the item needed none.
			q.mu.Unlock()
			continue
		}
		q.current = nil
		q.mu.Unlock()

		q.release(e.item)
		close(e.ticket.done)
	}
}

// next pops the head of the queue, waiting for one if needed.
func (q *Queue) next(ctx context.Context) (*entry, <-chan struct{}, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.current = e
			cleared := q.cleared
			size := len(q.items)
			q.mu.Unlock()
			q.notifyDepth(size)
			return e, cleared, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, nil, false
		}
	}
}

func (q *Queue) notifyDepth(n int) {
	if q.onDepth != nil {
		q.onDepth(n)
	}
}
