// Package peer converts connection-negotiation envelopes into live direct
// channels, one per remote participant, and reports state transitions to the
// session layer.
package peer

import (
	"errors"
	"time"
)

// State is the per-peer connection-establishment state.
type State int

const (
	StateNew State = iota
	StateOffering
	StateAnswering
	StateNegotiating
	StateConnected
	StateDisconnected
	StateFailed
)

var stateNames = map[State]string{
	StateNew:          "new",
	StateOffering:     "offering",
	StateAnswering:    "answering",
	StateNegotiating:  "negotiating",
	StateConnected:    "connected",
	StateDisconnected: "disconnected",
	StateFailed:       "failed",
}

func (s State) String() string { return stateNames[s] }

// Terminal reports whether the link can make no further progress.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFailed
}

// Negotiation errors surfaced asynchronously through the state callback.
var (
	ErrNegotiationTimeout   = errors.New("peer: negotiation timed out")
	ErrNegotiationFailed    = errors.New("peer: negotiation failed")
	ErrUnsupportedTransport = errors.New("peer: direct transport unavailable")
	ErrNotConnected         = errors.New("peer: no connected direct channel")
)

// Conn is the slice of the underlying transport a link drives. The production
// implementation is RTCConn (pion/webrtc); tests substitute an in-process fake.
//
// CreateOffer and CreateAnswer also apply the resulting description locally.
// ApplyFragment must only be called after ApplyRemoteDescription succeeded —
// the Manager enforces this with the pending-fragment queue.
type Conn interface {
	CreateOffer() (sdpType, sdp string, err error)
	CreateAnswer() (sdpType, sdp string, err error)
	ApplyRemoteDescription(sdpType, sdp string) error
	ApplyFragment(candidate string) error

	OnFragment(func(candidate string))
	OnOpen(func())
	OnClose(func())
	OnMessage(func(data []byte))

	Send(data []byte) error
	Close() error
}

// ConnFactory creates the underlying transport for one link. A nil factory
// puts the whole process in signaling-only mode.
type ConnFactory func() (Conn, error)

// link is the per-remote-peer record. All fields are guarded by the Manager
// mutex; a link never outlives its Manager entry.
type link struct {
	peerID string
	state  State
	conn   Conn

	// Connection-parameter fragments that arrived before a remote description
	// was applied. Drained in arrival order right after it is, then cleared.
	// Applying a fragment before the remote description exists is undefined
	// behavior in the transport, so the queue is the only legal holding spot.
	pending       []string
	remoteApplied bool

	timer *time.Timer
}
