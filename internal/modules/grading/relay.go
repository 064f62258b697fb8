package grading

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/slidecast/core/internal/modules/notify"
	"github.com/slidecast/core/internal/transport"
)

// Relay is the server-side hookup between rooms and the upstream: one
// forward-only notify consumer per room. It exists so submissions still
// reach grading when the teacher runs in a browser behind the gateway.
type Relay struct {
	client   transport.Client
	upstream *Upstream
	logger   *zap.Logger

	mu        sync.Mutex
	consumers map[string]*notify.Consumer
	closed    bool
}

func NewRelay(client transport.Client, upstream *Upstream, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		client:    client,
		upstream:  upstream,
		logger:    logger,
		consumers: make(map[string]*notify.Consumer),
	}
}

// EnsureRoom starts forwarding for the room if not already running.
func (r *Relay) EnsureRoom(ctx context.Context, room string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	if _, ok := r.consumers[room]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	consumer, err := notify.OpenConsumer(ctx, r.client, room, nil, r.upstream, r.logger)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		consumer.Close()
		return nil
	}
	if _, ok := r.consumers[room]; ok {
		consumer.Close()
		return nil
	}
	r.consumers[room] = consumer
	r.logger.Info("grading relay attached", zap.String("room", room))
	return nil
}

// Close stops every room consumer. Idempotent.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, consumer := range r.consumers {
		consumer.Close()
	}
	r.consumers = nil
}
