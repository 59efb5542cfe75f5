package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// Repository implements ports.Repository using Redis.
//
// Keys:
//
//	<prefix>graph:<id>              graph JSON
//	<prefix>responses:<id>          hash of submission id -> JSON
//	<prefix>responses:<id>:index    sorted set of submission ids by submit time
type Repository struct {
	client backend.UniversalClient
	prefix string
}

// Option configures the Repository.
type Option func(*Repository)

// WithPrefix sets the key prefix (default "inquiry:").
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

// New connects to addr and returns a Repository.
func New(addr string, opts ...Option) *Repository {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Repository {
	r := &Repository{client: client, prefix: "inquiry:"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client exposes the underlying client so the same connection can back the locker and kv stores.
func (r *Repository) Client() backend.UniversalClient {
	return r.client
}

func (r *Repository) graphKey(id string) string     { return r.prefix + "graph:" + id }
func (r *Repository) responsesKey(id string) string { return r.prefix + "responses:" + id }
func (r *Repository) indexKey(id string) string     { return r.prefix + "responses:" + id + ":index" }

// LoadGraph fetches and decodes the graph.
func (r *Repository) LoadGraph(ctx context.Context, inquiryID string) (*domain.Graph, error) {
	data, err := r.client.Get(ctx, r.graphKey(inquiryID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
		}
		return nil, fmt.Errorf("redis load error: %w", err)
	}
	return domain.DecodeGraph(data)
}

// SaveGraph stores the graph without expiry.
func (r *Repository) SaveGraph(ctx context.Context, inquiryID string, g *domain.Graph) error {
	data, err := domain.EncodeGraph(g)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.graphKey(inquiryID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis save error: %w", err)
	}
	return nil
}

// AppendResponse writes the submission and its index entry in one pipeline.
func (r *Repository) AppendResponse(ctx context.Context, inquiryID string, sub domain.Submission) (string, error) {
	exists, err := r.client.Exists(ctx, r.graphKey(inquiryID)).Result()
	if err != nil {
		return "", fmt.Errorf("redis exists error: %w", err)
	}
	if exists == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
	}

	sub.ID = uuid.NewString()
	sub.InquiryID = inquiryID
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}

	seq, err := r.client.Incr(ctx, r.indexKey(inquiryID)+":seq").Result()
	if err != nil {
		return "", fmt.Errorf("redis sequence error: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.responsesKey(inquiryID), sub.ID, data)
	pipe.ZAdd(ctx, r.indexKey(inquiryID), backend.Z{Score: float64(seq), Member: sub.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redis pipeline error: %w", err)
	}
	return sub.ID, nil
}

// ListResponses returns submissions in append order.
func (r *Repository) ListResponses(ctx context.Context, inquiryID string) ([]domain.Submission, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(inquiryID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list error: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := r.client.HMGet(ctx, r.responsesKey(inquiryID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch error: %w", err)
	}

	out := make([]domain.Submission, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry without payload; skip it.
			continue
		}
		var sub domain.Submission
		if err := json.Unmarshal([]byte(s), &sub); err != nil {
			return nil, fmt.Errorf("failed to decode response %s: %w", ids[i], err)
		}
		out = append(out, sub)
	}
	return out, nil
}
