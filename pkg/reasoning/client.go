package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/google/uuid"
)

// ResultsTopic is the bus topic result frames are published on.
const ResultsTopic = "reasoning.results"

const (
	metaRequestID = "request_id"
	metaSessionID = "session_id"
)

// Client owns the transport and the result bus shared by all subscriptions.
type Client struct {
	transport Transport
	bus       *gochannel.GoChannel
	logger    *slog.Logger
	timeout   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds every call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a client sending requests through t.
func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		logger:    logging.NewNop(),
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bus = gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 64,
			// Frames of one stream must arrive in publish order.
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewSlogLogger(c.logger),
	)
	return c
}

// Close shuts the bus down. Open subscriptions stop receiving.
func (c *Client) Close() error {
	return c.bus.Close()
}

// Open registers a subscription for a session. The subscription lives until
// Close or Client.Close; ending ctx does not end it.
func (c *Client) Open(ctx context.Context, sessionID string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	messages, err := c.bus.Subscribe(subCtx, ResultsTopic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ResultsTopic, err)
	}

	s := &Subscription{
		client:    c,
		sessionID: sessionID,
		cancel:    cancel,
		pending:   make(map[string]*pendingCall),
		done:      make(chan struct{}),
		logger:    c.logger.With("session_id", sessionID),
	}
	go s.route(messages)
	return s, nil
}

// publish puts a frame on the bus. Transports reach it through the sink handed to Send.
func (c *Client) publish(sessionID string, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaRequestID, f.RequestID)
	msg.Metadata.Set(metaSessionID, sessionID)
	return c.bus.Publish(ResultsTopic, msg)
}

type busSink struct {
	client    *Client
	sessionID string
	requestID string
}

func (s busSink) Emit(f Frame) error {
	f.RequestID = s.requestID
	return s.client.publish(s.sessionID, f)
}

type pendingCall struct {
	frames chan Frame
	done   chan struct{}
}

// Subscription is the per-session handle for reasoning calls.
// It implements ports.Reasoner.
type Subscription struct {
	client    *Client
	sessionID string
	cancel    context.CancelFunc
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool
	done    chan struct{}
}

// SessionID returns the session the subscription belongs to.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// Close unregisters the subscription. Results that arrive afterwards are dropped.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	s.cancel()
}

func (s *Subscription) route(messages <-chan *message.Message) {
	for msg := range messages {
		reqID := msg.Metadata.Get(metaRequestID)

		s.mu.Lock()
		call, ok := s.pending[reqID]
		s.mu.Unlock()

		if !ok || msg.Metadata.Get(metaSessionID) != s.sessionID {
			if msg.Metadata.Get(metaSessionID) == s.sessionID {
				s.logger.Debug("dropping stale reasoning result", "request_id", reqID)
			}
			msg.Ack()
			continue
		}

		var f Frame
		if err := json.Unmarshal(msg.Payload, &f); err != nil {
			s.logger.Warn("malformed reasoning frame", "request_id", reqID, "error", err)
			msg.Ack()
			continue
		}

		select {
		case call.frames <- f:
		case <-call.done:
			s.logger.Debug("dropping reasoning result after caller left", "request_id", reqID)
		case <-s.done:
		}
		msg.Ack()
	}
	// The bus dropped the subscriber; fail pending and later calls fast.
	s.Close()
}

// result is the folded outcome of a stream.
type result struct {
	text   string
	target string
}

func (s *Subscription) call(ctx context.Context, req Request) (result, error) {
	if s.client.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.client.timeout)
		defer cancel()
	}

	req.ID = uuid.NewString()
	req.SessionID = s.sessionID

	pc := &pendingCall{frames: make(chan Frame, 16), done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return result{}, ErrClosed
	}
	s.pending[req.ID] = pc
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ID)
		s.mu.Unlock()
		close(pc.done)
	}()

	sink := busSink{client: s.client, sessionID: s.sessionID, requestID: req.ID}
	go func() {
		if err := s.client.transport.Send(ctx, req, sink); err != nil {
			// The caller may have left already; an undeliverable frame is dropped by route.
			_ = sink.Emit(Frame{Error: err.Error(), Done: true})
		}
	}()

	var b strings.Builder
	var out result
	for {
		select {
		case f := <-pc.frames:
			if f.Error != "" {
				return result{}, &RemoteError{Message: f.Error}
			}
			b.WriteString(f.Chunk)
			if f.Target != "" {
				out.target = f.Target
			}
			if f.Done {
				out.text = b.String()
				return out, nil
			}
		case <-ctx.Done():
			return result{}, ctx.Err()
		case <-s.done:
			return result{}, ErrClosed
		}
	}
}

// ResolveCondition asks which node the condition routes to.
func (s *Subscription) ResolveCondition(ctx context.Context, nodeID, instructions string, transcript []domain.TranscriptEntry) (string, error) {
	res, err := s.call(ctx, Request{
		Kind:         KindCondition,
		NodeID:       nodeID,
		Instructions: instructions,
		Transcript:   transcript,
	})
	if err != nil {
		return "", err
	}
	target := res.target
	if target == "" {
		target = strings.TrimSpace(res.text)
	}
	if target == "" {
		return "", ErrNoTarget
	}
	return target, nil
}

// GenerateText returns the concatenated chunks of a generation stream.
func (s *Subscription) GenerateText(ctx context.Context, nodeID, instructions string, transcript []domain.TranscriptEntry) (string, error) {
	res, err := s.call(ctx, Request{
		Kind:         KindGenerate,
		NodeID:       nodeID,
		Instructions: instructions,
		Transcript:   transcript,
	})
	if err != nil {
		return "", err
	}
	return res.text, nil
}

// Predict returns the final prediction for a finished transcript.
func (s *Subscription) Predict(ctx context.Context, transcript []domain.TranscriptEntry) (string, error) {
	res, err := s.call(ctx, Request{Kind: KindPredict, Transcript: transcript})
	if err != nil {
		return "", err
	}
	return res.text, nil
}

// AutoFix sends validator errors and the graph document, and returns the replacement document.
func (s *Subscription) AutoFix(ctx context.Context, errs []string, document []byte) ([]byte, error) {
	res, err := s.call(ctx, Request{
		Kind:         KindAutoFix,
		Instructions: FixInstructions(errs),
		Document:     document,
	})
	if err != nil {
		return nil, err
	}
	return []byte(res.text), nil
}

// FixInstructions phrases validator errors as a repair request.
func FixInstructions(errs []string) string {
	var b strings.Builder
	b.WriteString("Fix the following problems in the inquiry graph and return the corrected graph document:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	return b.String()
}
