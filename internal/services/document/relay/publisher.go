package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
)

// DefaultStream is the Redis stream signals are appended to.
const DefaultStream = "contributor-billing:signals"

var (
	// ErrStreamRequired indicates a publisher without a stream name.
	ErrStreamRequired = errors.New("redis stream is required")
	// ErrClientRequired indicates a publisher without a redis client.
	ErrClientRequired = errors.New("redis client is required")
)

// Publisher delivers one envelope.
type Publisher interface {
	Publish(ctx context.Context, env signal.Envelope) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, env signal.Envelope) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, env signal.Envelope) error {
	return f(ctx, env)
}

// StreamAdder is the subset of the redis client the publisher uses.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher appends envelopes to a Redis stream.
type RedisPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

// RedisOption customizes a RedisPublisher.
type RedisOption func(*RedisPublisher)

// WithMaxLen caps the stream at roughly n entries.
func WithMaxLen(n int64) RedisOption {
	return func(p *RedisPublisher) {
		if n > 0 {
			p.maxLen = n
		}
	}
}

// NewRedisPublisher builds a publisher for stream.
func NewRedisPublisher(client StreamAdder, stream string, opts ...RedisOption) (*RedisPublisher, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		return nil, ErrStreamRequired
	}
	p := &RedisPublisher{client: client, stream: stream}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish appends env to the stream as one entry.
func (p *RedisPublisher) Publish(ctx context.Context, env signal.Envelope) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		ID:     "*",
		Values: streamValues(env),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", env.Key(), err)
	}
	return nil
}

func streamValues(env signal.Envelope) map[string]any {
	payload := string(env.Signal.Payload)
	if payload == "" {
		payload = "null"
	}
	return map[string]any{
		"key":         env.Key(),
		"document_id": env.DocumentID,
		"scope":       string(env.Scope),
		"index":       strconv.Itoa(env.Index),
		"position":    strconv.Itoa(env.Position),
		"type":        env.Signal.Type,
		"payload":     payload,
	}
}
