// Package relay implements the signaling relay server: WebSocket rooms keyed
// by session id, carrying small envelopes between participants. The relay is
// deliberately dumb — it forwards, it never interprets payloads, and it does
// no more than the signaling channel abstraction requires of the medium.
package relay

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
)

// inbound pairs an envelope with the client that sent it so the hub can
// exclude the sender from its own broadcast.
type inbound struct {
	env  *envelope.Envelope
	from *Client
}

// Hub is the single goroutine that owns all rooms and clients. Channels in,
// state mutation inside, messages out — no locks.
type Hub struct {
	rooms map[string]map[string]*Client // session id -> peer id -> client

	register   chan *Client
	unregister chan *Client
	forward    chan inbound
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		forward:    make(chan inbound),
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			room, ok := h.rooms[c.sessionID]
			if !ok {
				room = make(map[string]*Client)
				h.rooms[c.sessionID] = room
			}
			if old, ok := room[c.peerID]; ok {
				// A reconnecting peer replaces its stale connection.
				close(old.send)
			}
			room[c.peerID] = c
			log.Info().
				Str("session", c.sessionID).
				Str("peer", c.peerID).
				Int("room_size", len(room)).
				Msg("peer joined")

		case c := <-h.unregister:
			room, ok := h.rooms[c.sessionID]
			if !ok || room[c.peerID] != c {
				continue
			}
			delete(room, c.peerID)
			close(c.send)
			if len(room) == 0 {
				delete(h.rooms, c.sessionID)
			}
			log.Info().
				Str("session", c.sessionID).
				Str("peer", c.peerID).
				Msg("peer left")

		case in := <-h.forward:
			h.dispatch(in)

		case <-ctx.Done():
			for _, room := range h.rooms {
				for _, c := range room {
					close(c.send)
				}
			}
			h.rooms = make(map[string]map[string]*Client)
			return
		}
	}
}

// dispatch forwards one envelope within the sender's room. The room is keyed
// by the connection's session, not the envelope's: a client cannot inject
// into a session it never joined.
func (h *Hub) dispatch(in inbound) {
	room, ok := h.rooms[in.from.sessionID]
	if !ok {
		return
	}

	if in.env.Broadcast() {
		for peerID, c := range room {
			if c == in.from {
				continue
			}
			h.offer(c, in.env, peerID)
		}
		return
	}

	if c, ok := room[in.env.RecipientID]; ok && c != in.from {
		h.offer(c, in.env, in.env.RecipientID)
	}
}

// offer enqueues an envelope on a client without blocking the hub; slow
// consumers lose envelopes, which the session layer tolerates.
func (h *Hub) offer(c *Client, env *envelope.Envelope, peerID string) {
	select {
	case c.send <- env:
	default:
		log.Warn().
			Str("session", c.sessionID).
			Str("peer", peerID).
			Msg("send queue full, dropping envelope")
	}
}
