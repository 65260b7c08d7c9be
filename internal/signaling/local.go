package signaling

import (
	"fmt"
	"sync"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
)

// LocalBus is an in-process broadcast medium: every envelope published on one
// member channel is delivered asynchronously to every other member. It backs
// single-binary demos and the test harness, where it stands in for the relay.
type LocalBus struct {
	mu      sync.Mutex
	members []*LocalChannel
}

// NewLocalBus creates an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// Join adds a participant to the bus and returns its channel endpoint.
func (b *LocalBus) Join(peerID string) *LocalChannel {
	c := &LocalChannel{bus: b, selfID: peerID, done: make(chan struct{})}
	b.mu.Lock()
	b.members = append(b.members, c)
	b.mu.Unlock()
	return c
}

// broadcast fans an envelope out to every member except the sender. Delivery
// happens on fresh goroutines: like a real broadcast medium, the bus gives no
// cross-sender ordering guarantee.
func (b *LocalBus) broadcast(from *LocalChannel, env *envelope.Envelope) {
	b.mu.Lock()
	members := make([]*LocalChannel, len(b.members))
	copy(members, b.members)
	b.mu.Unlock()

	for _, m := range members {
		if m == from {
			continue
		}
		go m.deliver(env)
	}
}

// LocalChannel is one participant's endpoint on a LocalBus.
type LocalChannel struct {
	bus    *LocalBus
	selfID string

	mu        sync.RWMutex
	handlers  []Handler
	closeOnce sync.Once
	done      chan struct{}
}

// Publish broadcasts the envelope to every other bus member. Never blocks.
func (c *LocalChannel) Publish(env *envelope.Envelope) error {
	select {
	case <-c.done:
		return fmt.Errorf("signaling: channel closed")
	default:
	}
	c.bus.broadcast(c, env)
	return nil
}

// Subscribe registers a handler for inbound envelopes.
func (c *LocalChannel) Subscribe(fn Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

// Close detaches the channel from the bus.
func (c *LocalChannel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Done returns a channel closed when the member leaves the bus.
func (c *LocalChannel) Done() <-chan struct{} {
	return c.done
}

func (c *LocalChannel) deliver(env *envelope.Envelope) {
	select {
	case <-c.done:
		return
	default:
	}
	// Self-originated envelopes never come back through the medium.
	if env.SenderID == c.selfID {
		return
	}

	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(env)
	}
}
