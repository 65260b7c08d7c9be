// Package router delivers application envelopes to every other participant
// over the best currently available path: the direct data channel when one
// is open, the signaling channel otherwise. The switch is invisible to
// callers — a closed direct channel never surfaces as a send error.
package router

import (
	"time"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/signaling"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/util"
)

// DefaultEchoDelay spaces the local echo slightly behind dispatch so that
// same-process observers see an ordering close to what remote peers see.
const DefaultEchoDelay = 10 * time.Millisecond

// DirectSender is the slice of the peer manager the router needs.
type DirectSender interface {
	Connected(peerID string) bool
	Send(peerID string, data []byte) error
}

// Router routes outbound envelopes and validates inbound ones. It performs
// no payload transformation whatsoever.
type Router struct {
	signal    signaling.Channel
	direct    DirectSender // nil in signaling-only mode
	selfID    string
	sessionID string

	peers     func() []string          // current remote participant ids
	deliver   func(*envelope.Envelope) // local in-process handler
	echoDelay time.Duration
}

// New creates a router bound to one session. peers enumerates the current
// remote participants; deliver receives every accepted inbound envelope and
// every local echo.
func New(signal signaling.Channel, direct DirectSender, selfID, sessionID string,
	peers func() []string, deliver func(*envelope.Envelope)) *Router {
	return &Router{
		signal:    signal,
		direct:    direct,
		selfID:    selfID,
		sessionID: sessionID,
		peers:     peers,
		deliver:   deliver,
		echoDelay: DefaultEchoDelay,
	}
}

// Broadcast sends env to every other participant, preferring direct channels
// and falling back to the signaling channel per peer, then schedules the
// local echo.
func (r *Router) Broadcast(env *envelope.Envelope) {
	peers := r.peers()
	for _, peerID := range peers {
		if r.sendDirect(peerID, env) {
			continue
		}
		// Unicast fallback: a recipient-"all" publish would hand a second
		// copy to every peer that already got the envelope directly.
		clone := *env
		clone.RecipientID = peerID
		if err := r.signal.Publish(&clone); err != nil {
			util.LogWarning("signaling fallback publish failed: %v", err)
		}
	}
	// Before any roster exchange there may be no known peers at all; the
	// signaling channel is then the only way anyone hears the envelope.
	if len(peers) == 0 {
		if err := r.signal.Publish(env); err != nil {
			util.LogWarning("signaling broadcast publish failed: %v", err)
		}
	}
	r.echo(env)
}

// SendTo sends env to a single participant, with the same path preference
// and local echo behavior as Broadcast.
func (r *Router) SendTo(peerID string, env *envelope.Envelope) {
	if !r.sendDirect(peerID, env) {
		if err := r.signal.Publish(env); err != nil {
			util.LogWarning("signaling unicast publish failed: %v", err)
		}
	}
	r.echo(env)
}

// HandleSignal validates an envelope received from the signaling channel and
// hands it to the local handler. Envelopes for foreign sessions or other
// recipients are dropped silently — normal operation on a shared medium.
func (r *Router) HandleSignal(env *envelope.Envelope) {
	if !r.accept(env) {
		return
	}
	r.deliver(env)
}

// HandleDirect decodes and validates an envelope received on a direct data
// channel, then hands it to the local handler.
func (r *Router) HandleDirect(peerID string, data []byte) {
	env, err := envelope.DecodeBinary(data)
	if err != nil {
		util.Stats.AddDropped()
		util.LogDebug("dropping malformed direct envelope from %s: %v", peerID, err)
		return
	}
	if !r.accept(env) {
		return
	}
	util.Stats.AddReceived()
	r.deliver(env)
}

func (r *Router) accept(env *envelope.Envelope) bool {
	if env.Validate() != nil || env.SessionID != r.sessionID || !env.AddressedTo(r.selfID) {
		util.Stats.AddDropped()
		return false
	}
	return true
}

func (r *Router) sendDirect(peerID string, env *envelope.Envelope) bool {
	if r.direct == nil || !r.direct.Connected(peerID) {
		return false
	}
	data, err := envelope.EncodeBinary(env)
	if err != nil {
		return false
	}
	if err := r.direct.Send(peerID, data); err != nil {
		// The channel closed under us; the caller never sees this — the
		// envelope falls back to the signaling path.
		util.LogDebug("direct send to %s failed, falling back: %v", peerID, err)
		return false
	}
	util.Stats.AddDirectSent()
	return true
}

// echo hands a copy of an outgoing envelope to the local handler after a
// short delay. A deliberate convenience path: a same-process observer (or a
// single-process test harness) sees the same events a remote peer would.
func (r *Router) echo(env *envelope.Envelope) {
	time.AfterFunc(r.echoDelay, func() { r.deliver(env) })
}
