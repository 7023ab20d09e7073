// Package stream provides ProgressStream implementations: a buffered Go
// channel, a server-sent events writer and an in-memory recorder.
package stream

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

const defaultChannelBuffer = 64

// Channel delivers events on a Go channel. Send blocks while the buffer is
// full until ctx is done or the stream is closed; either way the event is
// dropped.
type Channel struct {
	mu     sync.RWMutex
	events chan workflow.ProgressEvent
	done   chan struct{}
	closed bool
	once   sync.Once
}

// NewChannel opens a channel stream with the given buffer size (default 64).
func NewChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	return &Channel{
		events: make(chan workflow.ProgressEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Events is the receive side. It is closed by Close.
func (c *Channel) Events() <-chan workflow.ProgressEvent {
	return c.events
}

// Send enqueues event unless the stream is closed.
func (c *Channel) Send(ctx context.Context, event workflow.ProgressEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	case <-ctx.Done():
	case <-c.done:
	}
}

// Close closes the events channel once. A Send blocked on a full buffer is
// released first, so Close never waits on the consumer.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
	})
}

var _ ports.ProgressStream = (*Channel)(nil)
