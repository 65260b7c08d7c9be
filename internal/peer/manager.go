package peer

import (
	"fmt"
	"sync"
	"time"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/util"
)

// DefaultNegotiationTimeout bounds how long a link may sit short of
// connected before it is failed. Offer/answer exchanges that outlive it are
// presumed unreachable.
const DefaultNegotiationTimeout = 20 * time.Second

// Callbacks connect the Manager to the session layer. SendDescription and
// SendFragment carry negotiation envelopes out through the signaling channel;
// OnState and OnMessage report transitions and inbound direct traffic.
// All callbacks may be invoked from transport goroutines.
type Callbacks struct {
	SendDescription func(peerID, sdpType, sdp string)
	SendFragment    func(peerID, candidate string)
	OnState         func(peerID string, state State, err error)
	OnMessage       func(peerID string, data []byte)
}

// Manager owns one link per remote peer and drives each through the
// negotiation state machine. All link mutation is serialized behind one
// mutex; callbacks are invoked outside it.
type Manager struct {
	newConn ConnFactory
	timeout time.Duration
	cb      Callbacks

	mu    sync.Mutex
	links map[string]*link
}

// NewManager creates a Manager. factory may be nil, in which case Connect
// reports ErrUnsupportedTransport and every send falls back to signaling.
func NewManager(factory ConnFactory, timeout time.Duration, cb Callbacks) *Manager {
	if timeout <= 0 {
		timeout = DefaultNegotiationTimeout
	}
	return &Manager{
		newConn: factory,
		timeout: timeout,
		cb:      cb,
		links:   make(map[string]*link),
	}
}

// Supported reports whether the direct-transport capability is present.
func (m *Manager) Supported() bool { return m.newConn != nil }

// Connect starts negotiation toward peerID as the offering side. By
// convention only the host calls it (star topology: the host initiates to
// every guest, guests never initiate to each other, bounding setup fan-out
// to O(n) per session). Idempotent while a link is live.
func (m *Manager) Connect(peerID string) error {
	if m.newConn == nil {
		return ErrUnsupportedTransport
	}

	m.mu.Lock()
	if l, ok := m.links[peerID]; ok && !l.state.Terminal() {
		m.mu.Unlock()
		return nil
	}

	l, err := m.newLink(peerID, StateOffering)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	sdpType, sdp, err := l.conn.CreateOffer()
	if err != nil {
		m.failLocked(l, fmt.Errorf("create offer: %w", err))
		m.mu.Unlock()
		return err
	}
	l.state = StateNegotiating
	m.mu.Unlock()

	m.cb.SendDescription(peerID, sdpType, sdp)
	return nil
}

// HandleOffer processes a remote offer. For an unknown peer it creates the
// answering-side link; fragments that raced ahead of the offer are already
// queued on the placeholder link and drain once the offer applies.
func (m *Manager) HandleOffer(peerID, sdpType, sdp string) {
	if m.newConn == nil {
		return
	}

	m.mu.Lock()
	l, ok := m.links[peerID]
	if !ok || l.state.Terminal() {
		var err error
		if l, err = m.newLink(peerID, StateAnswering); err != nil {
			m.mu.Unlock()
			util.LogError("peer %s: create link: %v", peerID, err)
			return
		}
	} else if l.conn == nil {
		// Placeholder created by early fragments: attach a transport now.
		if err := m.attachConnLocked(l); err != nil {
			m.failLocked(l, err)
			m.mu.Unlock()
			return
		}
		l.state = StateAnswering
	}

	if err := l.conn.ApplyRemoteDescription(sdpType, sdp); err != nil {
		m.failLocked(l, fmt.Errorf("apply offer: %w", err))
		m.mu.Unlock()
		return
	}
	l.remoteApplied = true
	m.drainLocked(l)

	ansType, ansSDP, err := l.conn.CreateAnswer()
	if err != nil {
		m.failLocked(l, fmt.Errorf("create answer: %w", err))
		m.mu.Unlock()
		return
	}
	l.state = StateNegotiating
	m.mu.Unlock()

	m.cb.SendDescription(peerID, ansType, ansSDP)
}

// HandleAnswer applies a remote answer to an offering/negotiating link, then
// drains any fragments that arrived ahead of it.
func (m *Manager) HandleAnswer(peerID, sdpType, sdp string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[peerID]
	if !ok || l.conn == nil || l.state.Terminal() {
		util.LogDebug("answer for unknown or dead peer %s, ignoring", peerID)
		return
	}
	if l.remoteApplied {
		// Duplicate answer on an unordered medium.
		return
	}

	if err := l.conn.ApplyRemoteDescription(sdpType, sdp); err != nil {
		m.failLocked(l, fmt.Errorf("apply answer: %w", err))
		return
	}
	l.remoteApplied = true
	m.drainLocked(l)
}

// HandleFragment applies a connection-parameter fragment, or queues it when
// the link cannot accept it yet. Fragments for a completely unknown peer
// create a placeholder link so nothing is lost to the offer/fragment race.
func (m *Manager) HandleFragment(peerID, candidate string) {
	if m.newConn == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[peerID]
	if !ok {
		l = &link{peerID: peerID, state: StateNew}
		l.timer = time.AfterFunc(m.timeout, func() { m.expire(peerID) })
		m.links[peerID] = l
	}
	if l.state.Terminal() {
		return
	}

	if !l.remoteApplied || l.conn == nil {
		l.pending = append(l.pending, candidate)
		return
	}
	if err := l.conn.ApplyFragment(candidate); err != nil {
		util.LogWarning("peer %s: apply fragment: %v", peerID, err)
	}
}

// Send transmits data over the peer's direct channel.
func (m *Manager) Send(peerID string, data []byte) error {
	m.mu.Lock()
	l, ok := m.links[peerID]
	connected := ok && l.state == StateConnected && l.conn != nil
	var conn Conn
	if connected {
		conn = l.conn
	}
	m.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	return conn.Send(data)
}

// Connected reports whether a direct channel to peerID is open.
func (m *Manager) Connected(peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[peerID]
	return ok && l.state == StateConnected
}

// State returns the current link state for peerID.
func (m *Manager) State(peerID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[peerID]
	if !ok {
		return StateNew, false
	}
	return l.state, true
}

// ClosePeer releases the link to peerID, if any. Used for explicit leaves;
// the transition is disconnected, not failed.
func (m *Manager) ClosePeer(peerID string) {
	m.mu.Lock()
	l, ok := m.links[peerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.releaseLocked(l)
	delete(m.links, peerID)
	wasLive := !l.state.Terminal()
	l.state = StateDisconnected
	m.mu.Unlock()

	if wasLive {
		m.cb.OnState(peerID, StateDisconnected, nil)
	}
}

// CloseAll tears down every link. Invoked by leaveSession; teardown is
// initiated synchronously but transport resources release in the background.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*link)
	for _, l := range links {
		m.releaseLocked(l)
		l.state = StateDisconnected
	}
	m.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Internals (all *Locked helpers require m.mu held)
// ---------------------------------------------------------------------------

// newLink creates a link with an attached transport and arms its timeout.
func (m *Manager) newLink(peerID string, st State) (*link, error) {
	l := &link{peerID: peerID, state: st}
	if err := m.attachConnLocked(l); err != nil {
		return nil, err
	}
	l.timer = time.AfterFunc(m.timeout, func() { m.expire(peerID) })
	m.links[peerID] = l
	return l, nil
}

// attachConnLocked creates the underlying transport and wires its callbacks.
func (m *Manager) attachConnLocked(l *link) error {
	conn, err := m.newConn()
	if err != nil {
		return fmt.Errorf("peer %s: new transport: %w", l.peerID, err)
	}
	l.conn = conn

	peerID := l.peerID
	conn.OnFragment(func(candidate string) {
		m.cb.SendFragment(peerID, candidate)
	})
	conn.OnOpen(func() { m.opened(peerID) })
	conn.OnClose(func() { m.closed(peerID) })
	conn.OnMessage(func(data []byte) {
		m.cb.OnMessage(peerID, data)
	})
	return nil
}

// drainLocked applies queued fragments in their original arrival order and
// empties the queue. Only legal once l.remoteApplied is true.
func (m *Manager) drainLocked(l *link) {
	for _, candidate := range l.pending {
		if err := l.conn.ApplyFragment(candidate); err != nil {
			util.LogWarning("peer %s: apply queued fragment: %v", l.peerID, err)
		}
	}
	l.pending = nil
}

// failLocked moves a link to failed and releases its resources. The state
// callback fires on a fresh goroutine so callers holding m.mu stay safe.
func (m *Manager) failLocked(l *link, cause error) {
	if l.state.Terminal() {
		return
	}
	m.releaseLocked(l)
	l.state = StateFailed
	peerID := l.peerID
	go m.cb.OnState(peerID, StateFailed, cause)
}

// releaseLocked stops the timer, drops queued fragments, and closes the
// native transport.
func (m *Manager) releaseLocked(l *link) {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.pending = nil
	if l.conn != nil {
		l.conn.Close()
	}
}

// opened handles the transport-level "fully open" signal.
func (m *Manager) opened(peerID string) {
	m.mu.Lock()
	l, ok := m.links[peerID]
	if !ok || l.state.Terminal() {
		m.mu.Unlock()
		return
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.state = StateConnected
	m.mu.Unlock()

	m.cb.OnState(peerID, StateConnected, nil)
}

// closed handles the transport-level failure/close signal.
func (m *Manager) closed(peerID string) {
	m.mu.Lock()
	l, ok := m.links[peerID]
	if !ok || l.state.Terminal() {
		m.mu.Unlock()
		return
	}
	wasConnected := l.state == StateConnected
	m.releaseLocked(l)
	if wasConnected {
		l.state = StateDisconnected
	} else {
		l.state = StateFailed
	}
	st := l.state
	m.mu.Unlock()

	var cause error
	if st == StateFailed {
		cause = ErrNegotiationFailed
	}
	m.cb.OnState(peerID, st, cause)
}

// expire fires when a link overstays the negotiation bound.
func (m *Manager) expire(peerID string) {
	m.mu.Lock()
	l, ok := m.links[peerID]
	if !ok || l.state == StateConnected || l.state.Terminal() {
		m.mu.Unlock()
		return
	}
	m.releaseLocked(l)
	l.state = StateFailed
	m.mu.Unlock()

	m.cb.OnState(peerID, StateFailed, ErrNegotiationTimeout)
}
