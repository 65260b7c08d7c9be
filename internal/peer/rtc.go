package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// STUN servers for candidate gathering. No TURN — sessions that cannot reach
// a direct path keep running on the signaling channel instead.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// maxRetransmits bounds retransmission on the data channel. Ordered delivery
// with bounded retries trades a little latency for move-ordering correctness
// in turn-based play; full unreliability would reorder moves.
const maxRetransmits = uint16(16)

// RTCConn implements Conn over a pion PeerConnection with a single
// pre-negotiated DataChannel. Negotiated mode (ID 0) lets both sides create
// the channel independently without relying on OnDataChannel.
type RTCConn struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	mu          sync.Mutex
	pcConnected bool
	dcOpen      bool
	onOpen      func()
	onClose     func()

	openOnce  sync.Once
	closeOnce sync.Once
}

var _ Conn = (*RTCConn)(nil)

// NewRTCConn creates a STUN-configured PeerConnection and its data channel.
// It is the production ConnFactory.
func NewRTCConn() (Conn, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, err
	}

	ordered := true
	retransmits := maxRetransmits
	negotiated := true
	id := uint16(0)
	dc, err := pc.CreateDataChannel("session", &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &retransmits,
		Negotiated:     &negotiated,
		ID:             &id,
	})
	if err != nil {
		pc.Close()
		return nil, err
	}

	c := &RTCConn{pc: pc, dc: dc}

	// "Connected" needs both the connection-level and channel-level open
	// signals; either failure/close signal ends the link.
	dc.OnOpen(func() {
		c.mu.Lock()
		c.dcOpen = true
		c.mu.Unlock()
		c.maybeOpen()
	})
	dc.OnClose(func() { c.fireClose() })
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			c.mu.Lock()
			c.pcConnected = true
			c.mu.Unlock()
			c.maybeOpen()
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			c.fireClose()
		}
	})

	return c, nil
}

// CreateOffer generates an SDP offer and applies it locally.
func (c *RTCConn) CreateOffer() (string, string, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", "", err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", "", err
	}
	return offer.Type.String(), offer.SDP, nil
}

// CreateAnswer generates an SDP answer and applies it locally.
func (c *RTCConn) CreateAnswer() (string, string, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", "", err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", "", err
	}
	return answer.Type.String(), answer.SDP, nil
}

// ApplyRemoteDescription applies the remote side's offer or answer.
func (c *RTCConn) ApplyRemoteDescription(sdpType, sdp string) error {
	var t webrtc.SDPType
	switch sdpType {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("rtc: unknown SDP type %q", sdpType)
	}
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: t, SDP: sdp})
}

// ApplyFragment adds a remote ICE candidate received through signaling.
func (c *RTCConn) ApplyFragment(candidate string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &init); err != nil {
		return fmt.Errorf("rtc: parse fragment: %w", err)
	}
	return c.pc.AddICECandidate(init)
}

// OnFragment registers a callback for locally gathered candidates (trickle).
// A nil candidate from the transport signals end of gathering and is dropped.
func (c *RTCConn) OnFragment(fn func(candidate string)) {
	c.pc.OnICECandidate(func(ic *webrtc.ICECandidate) {
		if ic == nil {
			return
		}
		data, err := json.Marshal(ic.ToJSON())
		if err != nil {
			return
		}
		fn(string(data))
	})
}

// OnOpen registers the fully-open callback (fires once, after both the
// PeerConnection and the DataChannel report open).
func (c *RTCConn) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = fn
	c.mu.Unlock()
}

// OnClose registers the failure/close callback (fires once).
func (c *RTCConn) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// OnMessage registers the inbound message callback.
func (c *RTCConn) OnMessage(fn func(data []byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

// Send writes one message to the data channel.
func (c *RTCConn) Send(data []byte) error {
	return c.dc.Send(data)
}

// Close releases the native transport resources.
func (c *RTCConn) Close() error {
	return errors.Join(c.dc.Close(), c.pc.Close())
}

func (c *RTCConn) maybeOpen() {
	c.mu.Lock()
	ready := c.pcConnected && c.dcOpen
	fn := c.onOpen
	c.mu.Unlock()
	if ready && fn != nil {
		c.openOnce.Do(fn)
	}
}

func (c *RTCConn) fireClose() {
	c.mu.Lock()
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		c.closeOnce.Do(fn)
	}
}
