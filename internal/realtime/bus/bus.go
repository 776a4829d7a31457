package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

// Emitter publishes on a bus; the forwarder on each instance hands messages
// to its local hub.
type Emitter struct {
	Bus Bus
	Log *logger.Logger
}

func (e *Emitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if err := e.Bus.Publish(ctx, msg); err != nil && e.Log != nil {
		e.Log.Warn("SSE bus publish failed", "channel", msg.Channel, "event", msg.Event, "error", err)
	}
}

var _ realtime.Emitter = (*Emitter)(nil)

var errClosed = errors.New("bus closed")

// memoryBus is the in-process Bus used when no Redis address is configured.
type memoryBus struct {
	mu     sync.RWMutex
	subs   []func(realtime.SSEMessage)
	closed bool
}

func NewMemoryBus() Bus {
	return &memoryBus{}
}

func (b *memoryBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}
	for _, fn := range b.subs {
		fn(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	b.subs = append(b.subs, onMsg)
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = nil
	b.mu.Unlock()
	return nil
}
