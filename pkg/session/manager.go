package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/internal/runtime"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/kv"
	"github.com/aretw0/inquiry/pkg/pacing"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/reasoning"
	"github.com/google/uuid"
)

const (
	// SnapshotNamespace is the kv namespace of traversal snapshots.
	SnapshotNamespace = "session"
	// ReceiptNamespace maps a completed session to its response id.
	ReceiptNamespace = "receipt"
)

// DefaultLockTTL bounds how long a distributed session lock may be held.
const DefaultLockTTL = 30 * time.Second

// DefaultIdleTimeout is how long a live chat may go without a step before it
// is stopped. Its snapshot stays; the next request restores it.
const DefaultIdleTimeout = 30 * time.Minute

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Step is the outcome of Begin or Submit.
type Step struct {
	State  *domain.TraversalState `json:"state"`
	Events []domain.DisplayEvent  `json:"events"`

	// Tickets close when the matching event has been released by the pacing queue.
	Tickets []*pacing.Ticket `json:"-"`
}

// Manager creates respondent sessions and serialises work on each of them.
type Manager struct {
	repo      ports.Repository
	snapshots *kv.Store[domain.TraversalState]
	receipts  *kv.Store[string]

	reasoning  *reasoning.Client
	predict    bool
	engineOpts []runtime.Option
	pacingOpts []pacing.Option
	onComplete func(domain.Submission)
	onDepth    func(sessionID string, depth int)

	mu    sync.Mutex
	locks map[string]*lockEntry
	chats map[string]*Chat

	locker  ports.Locker
	lockTTL time.Duration
	idleTTL time.Duration
	logger  *slog.Logger
	newID   func() string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lockTTL = d
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithReasoning opens one subscription per session on client and uses it as
// the session's reasoner.
func WithReasoning(client *reasoning.Client) Option {
	return func(m *Manager) {
		m.reasoning = client
	}
}

// WithPrediction streams a closing prediction after a session completes.
// Requires WithReasoning.
func WithPrediction(enabled bool) Option {
	return func(m *Manager) {
		m.predict = enabled
	}
}

// WithEngineOptions passes options to every session engine.
func WithEngineOptions(opts ...runtime.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithPacingOptions passes options to every session's pacing queue.
func WithPacingOptions(opts ...pacing.Option) Option {
	return func(m *Manager) {
		m.pacingOpts = append(m.pacingOpts, opts...)
	}
}

// WithCompletionObserver is called after a completed session was stored.
func WithCompletionObserver(fn func(domain.Submission)) Option {
	return func(m *Manager) {
		m.onComplete = fn
	}
}

// WithQueueDepthObserver receives the pacing queue depth of every session.
func WithQueueDepthObserver(fn func(sessionID string, depth int)) Option {
	return func(m *Manager) {
		m.onDepth = fn
	}
}

// WithSnapshotTTL expires idle session snapshots. Live chats are stopped
// after the same idle period.
func WithSnapshotTTL(backend kv.Backend, ttl time.Duration) Option {
	return func(m *Manager) {
		m.snapshots = kv.New[domain.TraversalState](backend, SnapshotNamespace, kv.WithTTL(ttl))
		if ttl > 0 {
			m.idleTTL = ttl
		}
	}
}

// WithIdleTimeout stops live chats that saw no step for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// NewManager creates a session manager. Snapshots and receipts live in backend.
func NewManager(repo ports.Repository, backend kv.Backend, opts ...Option) *Manager {
	m := &Manager{
		repo:      repo,
		snapshots: kv.New[domain.TraversalState](backend, SnapshotNamespace),
		receipts:  kv.New[string](backend, ReceiptNamespace),
		locks:     make(map[string]*lockEntry),
		chats:     make(map[string]*Chat),
		lockTTL:   DefaultLockTTL,
		idleTTL:   DefaultIdleTimeout,
		logger:    logging.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes fn while holding the session lock.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Create starts an idle session for an inquiry. An unknown inquiry yields a
// session in the not-found state rather than an error.
func (m *Manager) Create(ctx context.Context, inquiryID string) (*domain.TraversalState, error) {
	sessionID := m.newID()
	var state *domain.TraversalState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		g, err := m.repo.LoadGraph(ctx, inquiryID)
		if errors.Is(err, domain.ErrInquiryNotFound) {
			state = runtime.NotFound(inquiryID, sessionID)
			m.logger.Info("session for unknown inquiry", "inquiry_id", inquiryID, "session_id", sessionID)
			return m.snapshots.Put(ctx, sessionID, *state)
		}
		if err != nil {
			return fmt.Errorf("failed to load inquiry %s: %w", inquiryID, err)
		}

		state = domain.NewTraversalState(inquiryID, sessionID)
		chat, err := m.openChat(ctx, state, g)
		if err != nil {
			return err
		}
		if err := m.snapshots.Put(ctx, sessionID, *state); err != nil {
			m.forget(chat)
			chat.close()
			return fmt.Errorf("failed to snapshot session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("session created", "inquiry_id", inquiryID, "session_id", sessionID)
	return state.Clone(), nil
}

// Get returns the current state of a session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.TraversalState, error) {
	m.mu.Lock()
	chat, live := m.chats[sessionID]
	m.mu.Unlock()
	if live {
		return chat.State(), nil
	}
	return m.load(ctx, sessionID)
}

func (m *Manager) load(ctx context.Context, sessionID string) (*domain.TraversalState, error) {
	s, err := m.snapshots.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	return &s, nil
}

// Chat returns the live chat of a session, restoring it from its snapshot if needed.
func (m *Manager) Chat(ctx context.Context, sessionID string) (*Chat, error) {
	var chat *Chat
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		chat, err = m.chat(ctx, sessionID)
		return err
	})
	return chat, err
}

// chat must be called with the session lock held.
func (m *Manager) chat(ctx context.Context, sessionID string) (*Chat, error) {
	m.mu.Lock()
	chat, ok := m.chats[sessionID]
	m.mu.Unlock()
	if ok {
		chat.touch()
		return chat, nil
	}

	state, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.NotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, state.InquiryID)
	}
	if state.Phase.Final() {
		return frozenChat(state), nil
	}
	g, err := m.repo.LoadGraph(ctx, state.InquiryID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session %s: %w", sessionID, err)
	}
	return m.openChat(ctx, state, g)
}

func (m *Manager) openChat(ctx context.Context, state *domain.TraversalState, g *domain.Graph) (*Chat, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	chat := &Chat{
		id:      state.SessionID,
		state:   state.Clone(),
		ctx:     runCtx,
		cancel:  cancel,
		subs:    make(map[int]chan Update),
		idleTTL: m.idleTTL,
	}

	var reasoner ports.Reasoner
	if m.reasoning != nil {
		sub, err := m.reasoning.Open(ctx, state.SessionID)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open reasoning subscription: %w", err)
		}
		reasoner = sub
		chat.closer = sub.Close
	}

	opts := append([]runtime.Option{runtime.WithLogger(m.logger)}, m.engineOpts...)
	opts = append(opts, runtime.WithStateObserver(func(_ context.Context, s *domain.TraversalState) {
		chat.broadcast(Update{Type: UpdateState, State: s.Clone()})
	}))
	chat.engine = runtime.NewEngine(g, reasoner, opts...)

	pacingOpts := append([]pacing.Option{pacing.WithLogger(m.logger)}, m.pacingOpts...)
	pacingOpts = append(pacingOpts, pacing.WithRelease(func(it pacing.Item) {
		chat.broadcast(Update{Type: UpdateMessage, Item: &it})
	}))
	if m.onDepth != nil {
		sid := state.SessionID
		pacingOpts = append(pacingOpts, pacing.WithDepthObserver(func(n int) { m.onDepth(sid, n) }))
		chat.onClose = func() { m.onDepth(sid, 0) }
	}
	chat.queue = pacing.New(pacingOpts...)
	go func() {
		if err := chat.queue.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("pacing queue stopped", "session_id", chat.id, "err", err)
		}
	}()

	if m.idleTTL > 0 {
		chat.idle = time.AfterFunc(m.idleTTL, func() {
			m.logger.Debug("stopping idle chat", "session_id", chat.id)
			m.retire(chat)
		})
	}

	m.mu.Lock()
	m.chats[state.SessionID] = chat
	m.mu.Unlock()
	return chat, nil
}

// forget removes chat from the registry unless it was already replaced.
func (m *Manager) forget(chat *Chat) {
	m.mu.Lock()
	if m.chats[chat.id] == chat {
		delete(m.chats, chat.id)
	}
	m.mu.Unlock()
}

// retire stops a chat under its session lock. The snapshot is kept.
func (m *Manager) retire(chat *Chat) {
	err := m.WithLock(context.Background(), chat.id, func(context.Context) error {
		m.forget(chat)
		return nil
	})
	if err != nil {
		m.logger.Warn("retiring chat without lock", "session_id", chat.id, "err", err)
		m.forget(chat)
	}
	chat.close()
}

// retireWhenDrained stops a finished chat once its last message was released.
func (m *Manager) retireWhenDrained(chat *Chat, tickets []*pacing.Ticket) {
	if n := len(tickets); n > 0 {
		select {
		case <-tickets[n-1].Done():
		case <-chat.ctx.Done():
			return
		}
	}
	m.retire(chat)
}

// Begin records the respondent and walks to the first question.
func (m *Manager) Begin(ctx context.Context, sessionID string, who domain.Respondent) (*Step, error) {
	return m.step(ctx, sessionID, func(ctx context.Context, chat *Chat, s *domain.TraversalState) (*domain.TraversalState, []domain.DisplayEvent, error) {
		return chat.engine.Begin(ctx, s, who)
	})
}

// Submit sanitizes and records an answer to the pending question.
func (m *Manager) Submit(ctx context.Context, sessionID string, resp domain.Response) (*Step, error) {
	text, err := SanitizeInput(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	resp.Text = strings.TrimSpace(text)
	return m.step(ctx, sessionID, func(ctx context.Context, chat *Chat, s *domain.TraversalState) (*domain.TraversalState, []domain.DisplayEvent, error) {
		return chat.engine.Submit(ctx, s, resp)
	})
}

type stepFunc func(context.Context, *Chat, *domain.TraversalState) (*domain.TraversalState, []domain.DisplayEvent, error)

func (m *Manager) step(ctx context.Context, sessionID string, fn stepFunc) (*Step, error) {
	var out *Step
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		current, err := m.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.Phase.Final() {
			return domain.ErrTerminated
		}
		chat, err := m.chat(ctx, sessionID)
		if err != nil {
			return err
		}

		next, events, err := fn(ctx, chat, chat.State())
		if err != nil {
			return err
		}

		if next.Terminated() {
			if err := m.complete(ctx, next); err != nil {
				// The answer is not lost: the state is not advanced, so it can be resubmitted.
				return err
			}
			events = append(events, m.prediction(ctx, chat, next)...)
		}
		if err := m.snapshots.Put(ctx, sessionID, *next); err != nil {
			return fmt.Errorf("failed to snapshot session: %w", err)
		}

		chat.setState(next)
		out = &Step{State: next.Clone(), Events: events, Tickets: chat.enqueue(events)}
		if next.Phase.Final() {
			go m.retireWhenDrained(chat, out.Tickets)
		}
		return nil
	})
	return out, err
}

// complete stores the submission once per session.
func (m *Manager) complete(ctx context.Context, s *domain.TraversalState) error {
	if _, err := m.receipts.Get(ctx, s.SessionID); err == nil {
		return nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return err
	}

	sub := domain.NewSubmission(s)
	id, err := m.repo.AppendResponse(ctx, s.InquiryID, sub)
	if err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	if err := m.receipts.Put(ctx, s.SessionID, id); err != nil {
		m.logger.Warn("failed to record receipt", "session_id", s.SessionID, "err", err)
	}
	sub.ID = id
	m.logger.Info("session completed",
		"inquiry_id", s.InquiryID,
		"session_id", s.SessionID,
		"response_id", id,
		"visits", len(s.History))
	if m.onComplete != nil {
		m.onComplete(sub)
	}
	return nil
}

func (m *Manager) prediction(ctx context.Context, chat *Chat, s *domain.TraversalState) []domain.DisplayEvent {
	if !m.predict || m.reasoning == nil {
		return nil
	}
	p, ok := chat.engine.Reasoner().(interface {
		Predict(context.Context, []domain.TranscriptEntry) (string, error)
	})
	if !ok {
		return nil
	}
	text, err := p.Predict(ctx, s.Transcript())
	if err != nil {
		m.logger.Warn("prediction failed", "session_id", s.SessionID, "err", err)
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []domain.DisplayEvent{{
		ID:      m.newID(),
		Sender:  domain.SenderBot,
		Kind:    domain.KindText,
		Content: text,
	}}
}

// Receipt returns the response id stored for a completed session.
func (m *Manager) Receipt(ctx context.Context, sessionID string) (string, error) {
	id, err := m.receipts.Get(ctx, sessionID)
	if errors.Is(err, kv.ErrNotFound) {
		return "", fmt.Errorf("%w: %s has no stored response", domain.ErrSessionNotFound, sessionID)
	}
	return id, err
}

// Delete stops a session and removes its snapshot.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		chat, ok := m.chats[sessionID]
		delete(m.chats, sessionID)
		m.mu.Unlock()
		if ok {
			chat.close()
		}
		if _, err := m.snapshots.Get(ctx, sessionID); errors.Is(err, kv.ErrNotFound) && !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return m.snapshots.Delete(ctx, sessionID)
	})
}

// List returns the ids of all stored sessions, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	ids, err := m.snapshots.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close stops every live chat. Snapshots are kept.
func (m *Manager) Close() {
	m.mu.Lock()
	chats := m.chats
	m.chats = make(map[string]*Chat)
	m.mu.Unlock()
	for _, c := range chats {
		c.close()
	}
}
