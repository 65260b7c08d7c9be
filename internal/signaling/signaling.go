// Package signaling abstracts the out-of-band broadcast medium used to
// bootstrap direct peer connections and to carry session traffic whenever a
// direct channel is unavailable. Session, peer, and router code depend only
// on the Channel interface; the concrete medium (relay server, in-process
// bus) is chosen at wiring time.
package signaling

import "github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"

// Handler is invoked once per distinct inbound envelope. Implementations of
// Channel never invoke it for envelopes the local participant published
// itself — the deliberate local echo lives in the router, not here.
type Handler func(*envelope.Envelope)

// Channel is the pub/sub abstraction over the shared out-of-band medium.
//
// Publish is best-effort, at-least-once, and must not block the caller.
// Delivery order across different senders is not guaranteed; consumers must
// tolerate duplicates and reordering.
type Channel interface {
	Publish(*envelope.Envelope) error
	Subscribe(Handler)
	Close() error
}
