// Package envelope defines the message unit exchanged between session
// participants, both over the signaling channel and over direct data channels.
package envelope

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the kind of envelope.
type Kind string

const (
	KindPlayerJoin     Kind = "player-join"
	KindPlayerLeave    Kind = "player-leave"
	KindPlayerReady    Kind = "player-ready"
	KindActivitySelect Kind = "activity-select"
	KindActivityStart  Kind = "activity-start"
	KindMove           Kind = "move"
	KindStateSync      Kind = "state-sync"
	KindSessionSync    Kind = "session-sync"
	KindOffer          Kind = "offer"
	KindAnswer         Kind = "answer"
	KindFragment       Kind = "fragment"
	KindPeerDiscovery  Kind = "peer-discovery"
)

// RecipientAll addresses an envelope to every participant in the session.
const RecipientAll = "all"

// Envelope is the wire unit for all session traffic. Envelopes are immutable
// once sent; receivers must tolerate duplicates and out-of-order arrival.
// Timestamp is a display/ordering hint only and never drives correctness.
type Envelope struct {
	Kind        Kind      `json:"kind" msgpack:"kind"`
	SessionID   string    `json:"sessionId" msgpack:"sessionId"`
	SenderID    string    `json:"senderId" msgpack:"senderId"`
	RecipientID string    `json:"recipientId" msgpack:"recipientId"`
	Timestamp   time.Time `json:"timestamp" msgpack:"timestamp"`
	Payload     []byte    `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// ErrMalformed is the common sentinel behind every parse or validation
// failure; errors.Is(err, ErrMalformed) classifies an envelope as droppable.
var ErrMalformed = errors.New("envelope: malformed envelope")

// Validation errors. All wrap ErrMalformed.
var (
	ErrMissingKind    = fmt.Errorf("%w: missing kind", ErrMalformed)
	ErrMissingSession = fmt.Errorf("%w: missing sessionId", ErrMalformed)
	ErrMissingSender  = fmt.Errorf("%w: missing senderId", ErrMalformed)
)

// Validate performs the minimal structural checks the router relies on.
// Payload contents are opaque at this layer and never inspected.
func (e *Envelope) Validate() error {
	switch {
	case e.Kind == "":
		return ErrMissingKind
	case e.SessionID == "":
		return ErrMissingSession
	case e.SenderID == "":
		return ErrMissingSender
	}
	return nil
}

// Broadcast reports whether the envelope is addressed to all participants.
func (e *Envelope) Broadcast() bool {
	return e.RecipientID == "" || e.RecipientID == RecipientAll
}

// AddressedTo reports whether the envelope should be handled by the given
// participant (either a direct match or a broadcast).
func (e *Envelope) AddressedTo(peerID string) bool {
	return e.Broadcast() || e.RecipientID == peerID
}

// New constructs an envelope stamped with the current time.
func New(kind Kind, sessionID, senderID, recipientID string, payload []byte) *Envelope {
	return &Envelope{
		Kind:        kind,
		SessionID:   sessionID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	}
}
