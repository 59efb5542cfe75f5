package session

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/inquiry/internal/runtime"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/pacing"
)

// UpdateType tells subscribers what an Update carries.
type UpdateType string

const (
	// UpdateMessage is a paced display event.
	UpdateMessage UpdateType = "message"
	// UpdateState is a traversal state change, including loading indicators.
	UpdateState UpdateType = "state"
)

// Update is pushed to chat subscribers.
type Update struct {
	Type  UpdateType             `json:"type"`
	Item  *pacing.Item           `json:"item,omitempty"`
	State *domain.TraversalState `json:"state,omitempty"`
}

// Chat is the live half of one respondent session.
type Chat struct {
	id      string
	engine  *runtime.Engine
	queue   *pacing.Queue
	ctx     context.Context // ends when the chat closes
	cancel  context.CancelFunc
	closer  func()
	onClose func()

	idle    *time.Timer
	idleTTL time.Duration

	mu     sync.Mutex
	state  *domain.TraversalState
	nextID int
	subs   map[int]chan Update
	closed bool
}

const subscriberBuffer = 64

// ID returns the session id.
func (c *Chat) ID() string { return c.id }

// State returns a copy of the latest traversal state.
func (c *Chat) State() *domain.TraversalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Queue exposes the pacing queue, for example to Clear it when the respondent skips ahead.
func (c *Chat) Queue() *pacing.Queue { return c.queue }

// Subscribe returns a channel of updates and a function to stop receiving them.
// Slow subscribers miss updates instead of blocking the chat.
func (c *Chat) Subscribe() (<-chan Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Chat) broadcast(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (c *Chat) setState(s *domain.TraversalState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.broadcast(Update{Type: UpdateState, State: s.Clone()})
}

// enqueue hands display events to the pacing queue in order.
func (c *Chat) enqueue(events []domain.DisplayEvent) []*pacing.Ticket {
	tickets := make([]*pacing.Ticket, 0, len(events))
	for _, ev := range events {
		tickets = append(tickets, c.queue.Enqueue(pacing.FromEvent(ev)))
	}
	return tickets
}

// frozenChat serves a session whose traversal already ended. It runs nothing
// and its subscriptions are closed immediately.
func frozenChat(state *domain.TraversalState) *Chat {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Chat{
		id:     state.SessionID,
		ctx:    ctx,
		cancel: cancel,
		state:  state.Clone(),
		subs:   make(map[int]chan Update),
		closed: true,
	}
}

// touch postpones idle eviction.
func (c *Chat) touch() {
	if c.idle != nil {
		c.idle.Reset(c.idleTTL)
	}
}

func (c *Chat) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	if c.idle != nil {
		c.idle.Stop()
	}
	c.cancel()
	if c.closer != nil {
		c.closer()
	}
	if c.onClose != nil {
		c.onClose()
	}
}
