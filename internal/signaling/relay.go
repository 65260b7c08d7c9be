package signaling

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/util"
)

const (
	outboxSize = 64              // outgoing envelope channel capacity
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// RelayChannel is a Channel backed by a WebSocket connection to the relay
// server. A single writer goroutine serializes all writes; a single reader
// goroutine dispatches inbound envelopes to subscribers.
type RelayChannel struct {
	selfID string
	conn   *websocket.Conn

	outbox chan *envelope.Envelope

	mu       sync.RWMutex
	handlers []Handler

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay server and joins the room for the given session.
// The peer id identifies this participant to the relay; the relay never
// echoes a participant's own envelopes back to it.
func Dial(ctx context.Context, relayURL, sessionID, peerID string) (*RelayChannel, error) {
	u, err := url.Parse(relayURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("signaling: invalid relay URL %q", relayURL)
	}
	q := u.Query()
	q.Set("session", sessionID)
	q.Set("peer", peerID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: connect to relay: %w", err)
	}

	c := &RelayChannel{
		selfID: peerID,
		conn:   conn,
		outbox: make(chan *envelope.Envelope, outboxSize),
		done:   make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	return c, nil
}

// Publish enqueues an envelope for transmission. It never blocks: when the
// outbox is full the envelope is dropped with a warning, which is acceptable
// on a best-effort medium whose consumers tolerate loss and replay.
func (c *RelayChannel) Publish(env *envelope.Envelope) error {
	select {
	case <-c.done:
		return fmt.Errorf("signaling: channel closed")
	default:
	}

	select {
	case c.outbox <- env:
		return nil
	default:
		util.LogWarning("signaling outbox full, dropping %s envelope", env.Kind)
		return nil
	}
}

// Subscribe registers a handler for inbound envelopes. Handlers run on the
// reader goroutine and must return promptly.
func (c *RelayChannel) Subscribe(fn Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

// Close tears down the connection. Safe to call multiple times.
func (c *RelayChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// Done returns a channel closed when the relay connection is gone.
func (c *RelayChannel) Done() <-chan struct{} {
	return c.done
}

// writePump is the single-writer goroutine: it drains the outbox and keeps
// the connection alive with periodic pings.
func (c *RelayChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				util.LogError("signaling write failed: %v", err)
				c.Close()
				return
			}
			util.Stats.AddRelaySent()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// readPump is the single-reader goroutine. Malformed envelopes are dropped
// and logged, never surfaced; that is normal operation on a shared medium.
func (c *RelayChannel) readPump() {
	defer c.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				util.LogDebug("signaling read loop ended: %v", err)
			}
			return
		}

		env, err := envelope.DecodeJSON(data)
		if err != nil {
			util.LogDebug("dropping malformed signaling envelope: %v", err)
			continue
		}
		// The relay already excludes the sender, but a misbehaving relay must
		// not make a participant process its own publishes.
		if env.SenderID == c.selfID {
			continue
		}
		util.Stats.AddReceived()

		c.mu.RLock()
		handlers := c.handlers
		c.mu.RUnlock()
		for _, fn := range handlers {
			fn(env)
		}
	}
}
