package realtime

import "context"

// Emitter delivers a message to every subscriber of msg.Channel, either
// directly through the local hub or through a cross-instance bus.
type Emitter interface {
	Emit(ctx context.Context, msg SSEMessage)
}

var _ Emitter = (*SSEHub)(nil)
