package session

import (
	"errors"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/peer"
)

// Precondition violations fail the API call synchronously. Negotiation
// failures are reported asynchronously through EventConnectionError and the
// affected player's ConnState, never by erroring an unrelated call site.
// Losing the signaling channel is fatal to the whole session (no fallback
// medium, no renegotiation) and moves it to StateError.
var (
	ErrAlreadyInSession = errors.New("session: a session already exists on this process")
	ErrNotInSession     = errors.New("session: no active session")
	ErrUnauthorized     = errors.New("session: operation restricted to the host")
	ErrSignalingLost    = errors.New("session: signaling channel lost")

	ErrMalformedEnvelope = envelope.ErrMalformed

	ErrNegotiationTimeout   = peer.ErrNegotiationTimeout
	ErrNegotiationFailed    = peer.ErrNegotiationFailed
	ErrUnsupportedTransport = peer.ErrUnsupportedTransport
)
