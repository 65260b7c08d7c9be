package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/peer"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/router"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/signaling"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/util"
)

// ChannelFactory opens the signaling channel for one session. The channel's
// lifetime matches the session's: LeaveSession closes it.
type ChannelFactory func(ctx context.Context, sessionID, peerID string) (signaling.Channel, error)

// Option customizes a Controller.
type Option func(*Controller)

// WithConnFactory substitutes the direct-transport factory (tests use an
// in-process fake instead of pion).
func WithConnFactory(f peer.ConnFactory) Option {
	return func(c *Controller) { c.connFactory = f }
}

// WithoutDirectTransport puts the controller in permanent signaling-only
// mode, the fallback for platforms lacking the direct-transport capability.
func WithoutDirectTransport() Option {
	return func(c *Controller) { c.connFactory = nil }
}

// WithNegotiationTimeout bounds how long a peer negotiation may run.
func WithNegotiationTimeout(d time.Duration) Option {
	return func(c *Controller) { c.negotiationTimeout = d }
}

// Controller is the explicit, constructible session context owned by the
// embedding application. All session state lives here — no module-level
// statics — and all mutation is serialized behind one mutex, so handlers
// observe run-to-completion semantics.
type Controller struct {
	channels           ChannelFactory
	connFactory        peer.ConnFactory
	negotiationTimeout time.Duration

	events eventBus

	mu     sync.Mutex
	sess   *Session
	selfID string
	signal signaling.Channel
	peers  *peer.Manager
	route  *router.Router
}

// New creates a Controller. By default direct channels ride on pion/webrtc;
// see WithConnFactory and WithoutDirectTransport.
func New(channels ChannelFactory, opts ...Option) *Controller {
	c := &Controller{
		channels:           channels,
		connFactory:        peer.NewRTCConn,
		negotiationTimeout: peer.DefaultNegotiationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers a listener for one event kind.
func (c *Controller) On(k EventKind, fn Listener) { c.events.on(k, fn) }

// OnAny registers a listener for every event.
func (c *Controller) OnAny(fn Listener) { c.events.onAny(fn) }

// ---------------------------------------------------------------------------
// Outward API
// ---------------------------------------------------------------------------

// CreateSession starts a new session with the local participant as host.
// Fails with ErrAlreadyInSession if a session already exists on this process.
func (c *Controller) CreateSession(ctx context.Context, hostName string, maxPlayers int, activityID string) (*Session, error) {
	if maxPlayers <= 0 {
		maxPlayers = 4
	}

	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyInSession
	}
	selfID := uuid.NewString()
	now := time.Now().UTC()
	c.selfID = selfID
	c.sess = &Session{
		ID:         newSessionID(),
		HostID:     selfID,
		MaxPlayers: maxPlayers,
		ActivityID: activityID,
		State:      StateCreating,
		CreatedAt:  now,
		Players: []*Player{{
			ID:        selfID,
			Name:      hostName,
			Role:      RoleHost,
			ConnState: ConnConnected,
			JoinedAt:  now,
		}},
	}
	c.mu.Unlock()

	if err := c.attach(ctx); err != nil {
		c.reset()
		return nil, err
	}

	c.mu.Lock()
	c.sess.State = StateWaiting
	snap := c.sess.Clone()
	c.mu.Unlock()

	c.events.emit(Event{Kind: EventSessionCreated, PlayerID: selfID, Session: snap})
	return snap, nil
}

// JoinSession joins an existing session by shareable reference (or bare id).
// The local record starts provisional — hostId "unknown" — and is reconciled
// field-by-field when the host's session-sync envelope arrives; only the
// local player's own roster entry is preserved as-is across that reconcile.
func (c *Controller) JoinSession(ctx context.Context, ref, playerName string) (*Session, error) {
	sessionID, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyInSession
	}
	selfID := uuid.NewString()
	now := time.Now().UTC()
	c.selfID = selfID
	c.sess = &Session{
		ID:        sessionID,
		HostID:    "unknown",
		State:     StateWaiting,
		CreatedAt: now,
		Players: []*Player{{
			ID:        selfID,
			Name:      playerName,
			Role:      RoleGuest,
			ConnState: ConnConnected,
			JoinedAt:  now,
		}},
	}
	c.mu.Unlock()

	if err := c.attach(ctx); err != nil {
		c.reset()
		return nil, err
	}

	// Announce ourselves: discovery for the host, player-join for everyone.
	payload := envelope.MarshalPayload(envelope.JoinPayload{Name: playerName})
	c.broadcast(envelope.KindPeerDiscovery, payload)
	c.broadcast(envelope.KindPlayerJoin, payload)

	c.mu.Lock()
	snap := c.sess.Clone()
	c.mu.Unlock()

	c.events.emit(Event{Kind: EventSessionJoined, PlayerID: selfID, Session: snap})
	return snap, nil
}

// LeaveSession tears down every peer link, announces the departure
// best-effort, and clears the local session. Idempotent when no session
// exists. Teardown of transport resources completes in the background.
func (c *Controller) LeaveSession() error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return nil
	}
	env := envelope.New(envelope.KindPlayerLeave, c.sess.ID, c.selfID, envelope.RecipientAll, nil)
	ch, mgr := c.signal, c.peers
	c.sess = nil
	c.selfID = ""
	c.signal = nil
	c.peers = nil
	c.route = nil
	c.mu.Unlock()

	if ch != nil {
		if err := ch.Publish(env); err != nil {
			util.LogDebug("leave announcement not delivered: %v", err)
		}
	}
	if mgr != nil {
		mgr.CloseAll()
	}
	if ch != nil {
		ch.Close()
	}
	return nil
}

// SetPlayerReady flips the local player's readiness and announces it.
func (c *Controller) SetPlayerReady(ready bool) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNotInSession
	}
	if p := c.sess.Player(c.selfID); p != nil {
		p.Ready = ready
	}
	c.refreshLifecycleLocked()
	c.mu.Unlock()

	c.broadcast(envelope.KindPlayerReady,
		envelope.MarshalPayload(envelope.ReadyPayload{Ready: ready}))
	return nil
}

// SelectActivity picks the activity for the session. Host only.
func (c *Controller) SelectActivity(activityID string) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNotInSession
	}
	if c.selfID != c.sess.HostID {
		c.mu.Unlock()
		return ErrUnauthorized
	}
	c.sess.ActivityID = activityID
	c.mu.Unlock()

	c.broadcast(envelope.KindActivitySelect,
		envelope.MarshalPayload(envelope.ActivityPayload{ActivityID: activityID}))
	return nil
}

// StartActivity moves the session into playing. Host only; a guest calling
// it gets ErrUnauthorized and causes no session mutation.
func (c *Controller) StartActivity(activityID string) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNotInSession
	}
	if c.selfID != c.sess.HostID {
		c.mu.Unlock()
		return ErrUnauthorized
	}
	if activityID != "" {
		c.sess.ActivityID = activityID
	}
	c.sess.State = StatePlaying
	c.mu.Unlock()

	c.broadcast(envelope.KindActivityStart,
		envelope.MarshalPayload(envelope.ActivityPayload{ActivityID: activityID}))
	return nil
}

// CompleteActivity moves a playing session to finished. The game engine
// (an external collaborator) calls this on the host when the activity ends;
// guests converge through the broadcast session record.
func (c *Controller) CompleteActivity() error {
	return c.hostLifecycle(StateFinished, false)
}

// Rematch returns a finished (or playing) session to waiting and clears all
// readiness. Host only.
func (c *Controller) Rematch() error {
	return c.hostLifecycle(StateWaiting, true)
}

func (c *Controller) hostLifecycle(target LifecycleState, clearReady bool) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNotInSession
	}
	if c.selfID != c.sess.HostID {
		c.mu.Unlock()
		return ErrUnauthorized
	}
	c.sess.State = target
	if clearReady {
		for _, p := range c.sess.Players {
			p.Ready = false
		}
	}
	snap := c.sess.Clone()
	c.mu.Unlock()

	c.broadcast(envelope.KindSessionSync, envelope.MarshalPayload(snap))
	c.events.emit(Event{Kind: EventStateUpdated, PlayerID: snap.HostID, Session: snap})
	return nil
}

// SendMove broadcasts an application move. The payload is opaque and reaches
// every observer byte-identical.
func (c *Controller) SendMove(payload []byte) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNotInSession
	}
	c.mu.Unlock()

	c.broadcast(envelope.KindMove, payload)
	return nil
}

// SendAuthoritativeState broadcasts a host-authoritative state snapshot for
// reconciliation. Host only.
func (c *Controller) SendAuthoritativeState(payload []byte) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNotInSession
	}
	if c.selfID != c.sess.HostID {
		c.mu.Unlock()
		return ErrUnauthorized
	}
	c.mu.Unlock()

	c.broadcast(envelope.KindStateSync, payload)
	return nil
}

// CurrentSession returns a snapshot of the active session, or nil.
func (c *Controller) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// SelfID returns the local participant id ("" outside a session).
func (c *Controller) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// IsHost reports whether the local participant hosts the active session.
func (c *Controller) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.HostID == c.selfID
}

// IsConnected reports whether a session is active and its signaling channel
// is attached.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.signal != nil
}

// ShareableSessionRef returns the reference other players paste to join.
func (c *Controller) ShareableSessionRef() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return "", ErrNotInSession
	}
	return ShareableRef(c.sess.ID), nil
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

// attach opens the signaling channel and wires the peer manager and router
// for the session recorded in c.sess.
func (c *Controller) attach(ctx context.Context) error {
	c.mu.Lock()
	sessionID, selfID := c.sess.ID, c.selfID
	c.mu.Unlock()

	ch, err := c.channels(ctx, sessionID, selfID)
	if err != nil {
		return fmt.Errorf("session: open signaling channel: %w", err)
	}

	mgr := peer.NewManager(c.connFactory, c.negotiationTimeout, peer.Callbacks{
		SendDescription: c.sendDescription,
		SendFragment:    c.sendFragment,
		OnState:         c.peerState,
		OnMessage:       c.directMessage,
	})
	rt := router.New(ch, mgr, selfID, sessionID, c.remotePeerIDs, c.handleEnvelope)

	c.mu.Lock()
	c.signal = ch
	c.peers = mgr
	c.route = rt
	c.mu.Unlock()

	ch.Subscribe(func(env *envelope.Envelope) {
		if rt := c.currentRoute(); rt != nil {
			rt.HandleSignal(env)
		}
	})

	// Both channel implementations expose a death signal; losing the medium
	// under an active session is unrecoverable.
	if w, ok := ch.(interface{ Done() <-chan struct{} }); ok {
		go func() {
			<-w.Done()
			c.signalingLost(ch)
		}()
	}
	return nil
}

// signalingLost moves the session to the error state when its signaling
// channel dies underneath it. A channel closed by LeaveSession or reset has
// already been detached from the controller and is ignored here.
func (c *Controller) signalingLost(ch signaling.Channel) {
	c.mu.Lock()
	if c.sess == nil || c.signal != ch {
		c.mu.Unlock()
		return
	}
	c.sess.State = StateError
	snap := c.sess.Clone()
	c.mu.Unlock()

	util.LogError("signaling channel lost, session %s unrecoverable", snap.ID)
	c.events.emit(Event{Kind: EventConnectionError, Err: ErrSignalingLost, Session: snap})
}

// reset clears a half-built session after a failed create/join.
func (c *Controller) reset() {
	c.mu.Lock()
	ch := c.signal
	c.sess = nil
	c.selfID = ""
	c.signal = nil
	c.peers = nil
	c.route = nil
	c.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

func (c *Controller) currentRoute() *router.Router {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.route
}

// remotePeerIDs lists every rostered participant except self.
func (c *Controller) remotePeerIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	ids := make([]string, 0, len(c.sess.Players))
	for _, p := range c.sess.Players {
		if p.ID != c.selfID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// broadcast wraps a payload in an envelope addressed to everyone and routes
// it. Must be called without c.mu held.
func (c *Controller) broadcast(kind envelope.Kind, payload []byte) {
	c.mu.Lock()
	if c.sess == nil || c.route == nil {
		c.mu.Unlock()
		return
	}
	env := envelope.New(kind, c.sess.ID, c.selfID, envelope.RecipientAll, payload)
	rt := c.route
	c.mu.Unlock()

	rt.Broadcast(env)
}

// sendDescription carries an offer/answer out through the signaling channel.
// Negotiation envelopes never ride direct channels: the channel they would
// ride is the one being negotiated.
func (c *Controller) sendDescription(peerID, sdpType, sdp string) {
	kind := envelope.KindOffer
	if sdpType == "answer" {
		kind = envelope.KindAnswer
	}
	c.publishTo(peerID, kind, envelope.MarshalPayload(envelope.DescriptionPayload{
		SDPType: sdpType,
		SDP:     sdp,
	}))
}

// sendFragment carries a connection-parameter fragment out through the
// signaling channel.
func (c *Controller) sendFragment(peerID, candidate string) {
	c.publishTo(peerID, envelope.KindFragment,
		envelope.MarshalPayload(envelope.FragmentPayload{Candidate: candidate}))
}

func (c *Controller) publishTo(peerID string, kind envelope.Kind, payload []byte) {
	c.mu.Lock()
	if c.sess == nil || c.signal == nil {
		c.mu.Unlock()
		return
	}
	env := envelope.New(kind, c.sess.ID, c.selfID, peerID, payload)
	ch := c.signal
	c.mu.Unlock()

	if err := ch.Publish(env); err != nil {
		util.LogWarning("publish %s to %s failed: %v", kind, peerID, err)
	}
}

// peerState reacts to link transitions. Disconnection does not remove the
// player from the roster — the UI may show a reconnecting state — it only
// flips ConnState. Only player-leave or LeaveSession removes entries.
func (c *Controller) peerState(peerID string, st peer.State, cause error) {
	var emits []Event

	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	p := c.sess.Player(peerID)
	switch st {
	case peer.StateConnected:
		if p != nil {
			p.ConnState = ConnConnected
		}
		emits = append(emits, Event{Kind: EventPlayerConnected, PlayerID: peerID, Session: c.sess.Clone()})
	case peer.StateDisconnected, peer.StateFailed:
		if p != nil {
			p.ConnState = ConnDisconnected
		}
		emits = append(emits, Event{Kind: EventPlayerDisconnected, PlayerID: peerID, Session: c.sess.Clone()})
	}
	c.mu.Unlock()

	if cause != nil {
		emits = append(emits, Event{Kind: EventConnectionError, PlayerID: peerID, Err: cause})
	}
	for _, ev := range emits {
		c.events.emit(ev)
	}
}

func (c *Controller) directMessage(peerID string, data []byte) {
	if rt := c.currentRoute(); rt != nil {
		rt.HandleDirect(peerID, data)
	}
}

// ---------------------------------------------------------------------------
// Inbound envelope handling
// ---------------------------------------------------------------------------

// handleEnvelope is the single entry point for envelopes accepted by the
// router — from the signaling channel, from direct channels, and from the
// local echo. Handlers tolerate duplicates and reordering throughout: the
// fallback medium guarantees neither.
func (c *Controller) handleEnvelope(env *envelope.Envelope) {
	switch env.Kind {
	case envelope.KindOffer, envelope.KindAnswer, envelope.KindFragment:
		c.handleNegotiation(env)
	default:
		c.handleApplication(env)
	}
}

// handleNegotiation feeds offer/answer/fragment envelopes to the peer
// manager. Runs without c.mu held: the manager calls straight back into
// sendDescription/sendFragment.
func (c *Controller) handleNegotiation(env *envelope.Envelope) {
	c.mu.Lock()
	mgr := c.peers
	self := c.selfID
	c.mu.Unlock()
	if mgr == nil || env.SenderID == self {
		return
	}

	switch env.Kind {
	case envelope.KindOffer, envelope.KindAnswer:
		var dp envelope.DescriptionPayload
		if err := envelope.UnmarshalPayload(env.Payload, &dp); err != nil {
			util.LogDebug("dropping malformed %s from %s: %v", env.Kind, env.SenderID, err)
			return
		}
		if env.Kind == envelope.KindOffer {
			mgr.HandleOffer(env.SenderID, dp.SDPType, dp.SDP)
		} else {
			mgr.HandleAnswer(env.SenderID, dp.SDPType, dp.SDP)
		}
	case envelope.KindFragment:
		var fp envelope.FragmentPayload
		if err := envelope.UnmarshalPayload(env.Payload, &fp); err != nil {
			util.LogDebug("dropping malformed fragment from %s: %v", env.SenderID, err)
			return
		}
		mgr.HandleFragment(env.SenderID, fp.Candidate)
	}
}

// handleApplication mutates session state under c.mu and defers every
// side-effecting call (peer dials, envelope sends, event emits) until after
// the unlock.
func (c *Controller) handleApplication(env *envelope.Envelope) {
	var emits []Event
	var after []func()

	c.mu.Lock()
	sess := c.sess
	if sess == nil || env.SessionID != sess.ID {
		c.mu.Unlock()
		return
	}
	self := env.SenderID == c.selfID

	switch env.Kind {
	case envelope.KindPlayerJoin, envelope.KindPeerDiscovery:
		if self {
			break
		}
		var jp envelope.JoinPayload
		if err := envelope.UnmarshalPayload(env.Payload, &jp); err != nil {
			break
		}
		if sess.Player(env.SenderID) == nil &&
			sess.MaxPlayers > 0 && len(sess.Players) >= sess.MaxPlayers {
			util.LogWarning("session %s full, ignoring join from %s", sess.ID, env.SenderID)
			break
		}
		added := sess.upsertPlayer(&Player{
			ID:        env.SenderID,
			Name:      jp.Name,
			Role:      RoleGuest,
			ConnState: ConnConnecting,
			JoinedAt:  env.Timestamp,
		})
		if added {
			emits = append(emits, Event{Kind: EventPlayerConnected, PlayerID: env.SenderID, Session: sess.Clone()})
		}
		if c.selfID == sess.HostID {
			// Host replies with the authoritative record and — when the
			// direct transport exists — dials the newcomer. Star topology:
			// guests never dial each other.
			after = append(after, c.syncAndDialLocked(env.SenderID))
		}

	case envelope.KindPlayerLeave:
		if self {
			break
		}
		if sess.removePlayer(env.SenderID) {
			c.refreshLifecycleLocked()
			emits = append(emits, Event{Kind: EventPlayerDisconnected, PlayerID: env.SenderID, Session: sess.Clone()})
			mgr := c.peers
			peerID := env.SenderID
			after = append(after, func() {
				if mgr != nil {
					mgr.ClosePeer(peerID)
				}
			})
		}

	case envelope.KindPlayerReady:
		var rp envelope.ReadyPayload
		if err := envelope.UnmarshalPayload(env.Payload, &rp); err != nil {
			break
		}
		if p := sess.Player(env.SenderID); p != nil {
			p.Ready = rp.Ready
			c.refreshLifecycleLocked()
			emits = append(emits, Event{Kind: EventPlayerReadyChanged, PlayerID: env.SenderID, Session: sess.Clone()})
		}

	case envelope.KindActivitySelect:
		if env.SenderID != sess.HostID {
			break // only the host selects; stale or rogue envelope
		}
		var ap envelope.ActivityPayload
		if err := envelope.UnmarshalPayload(env.Payload, &ap); err != nil {
			break
		}
		sess.ActivityID = ap.ActivityID
		emits = append(emits, Event{Kind: EventActivitySelected, ActivityID: ap.ActivityID, Session: sess.Clone()})

	case envelope.KindActivityStart:
		if env.SenderID != sess.HostID {
			break
		}
		var ap envelope.ActivityPayload
		if err := envelope.UnmarshalPayload(env.Payload, &ap); err != nil {
			break
		}
		if ap.ActivityID != "" {
			sess.ActivityID = ap.ActivityID
		}
		sess.State = StatePlaying
		emits = append(emits, Event{Kind: EventActivityStarted, ActivityID: sess.ActivityID, Session: sess.Clone()})

	case envelope.KindMove:
		emits = append(emits, Event{Kind: EventMoveReceived, PlayerID: env.SenderID, Payload: env.Payload})

	case envelope.KindStateSync:
		if env.SenderID != sess.HostID {
			break // authoritative state comes from the host alone
		}
		emits = append(emits, Event{Kind: EventStateUpdated, PlayerID: env.SenderID, Payload: env.Payload})

	case envelope.KindSessionSync:
		if self {
			break
		}
		if sess.HostID != "unknown" && env.SenderID != sess.HostID {
			break
		}
		if c.reconcileLocked(env) {
			emits = append(emits, Event{Kind: EventStateUpdated, PlayerID: env.SenderID, Session: sess.Clone()})
		}

	default:
		util.Stats.AddDropped()
	}
	c.mu.Unlock()

	for _, fn := range after {
		fn()
	}
	for _, ev := range emits {
		c.events.emit(ev)
	}
}

// syncAndDialLocked builds the deferred host reaction to a join: unicast the
// full session record to the newcomer, then initiate the direct connection.
// Requires c.mu held; the returned closure must run only after the unlock.
func (c *Controller) syncAndDialLocked(peerID string) func() {
	rt := c.route
	mgr := c.peers
	var env *envelope.Envelope
	if c.sess != nil {
		env = envelope.New(envelope.KindSessionSync, c.sess.ID, c.selfID, peerID,
			envelope.MarshalPayload(c.sess.Clone()))
	}

	return func() {
		if env != nil && rt != nil {
			rt.SendTo(peerID, env)
		}
		if mgr != nil && mgr.Supported() {
			if err := mgr.Connect(peerID); err != nil {
				util.LogDebug("direct dial to %s unavailable: %v", peerID, err)
			}
		}
	}
}

// reconcileLocked overwrites the provisional session field-by-field from the
// host's copy, preserving the local player's own entry as-is: the host's view
// of "my" fields is advisory, and taking it verbatim would race with local
// ready/state changes already in flight.
func (c *Controller) reconcileLocked(env *envelope.Envelope) bool {
	var remote Session
	if err := envelope.UnmarshalPayload(env.Payload, &remote); err != nil {
		util.LogDebug("dropping malformed session-sync from %s: %v", env.SenderID, err)
		return false
	}

	sess := c.sess
	own := sess.Player(c.selfID)

	sess.HostID = remote.HostID
	sess.MaxPlayers = remote.MaxPlayers
	sess.ActivityID = remote.ActivityID
	sess.State = remote.State
	if !remote.CreatedAt.IsZero() {
		sess.CreatedAt = remote.CreatedAt
	}

	players := make([]*Player, 0, len(remote.Players))
	sawSelf := false
	for _, p := range remote.Players {
		if p.ID == c.selfID && own != nil {
			players = append(players, own)
			sawSelf = true
			continue
		}
		cp := *p
		players = append(players, &cp)
	}
	if !sawSelf && own != nil {
		players = append(players, own)
	}
	sess.Players = players
	return true
}

// refreshLifecycleLocked recomputes the waiting<->ready edge. ready→playing
// is host-triggered via StartActivity, never automatic.
func (c *Controller) refreshLifecycleLocked() {
	switch c.sess.State {
	case StateWaiting:
		if c.sess.allReady() {
			c.sess.State = StateReady
		}
	case StateReady:
		if !c.sess.allReady() {
			c.sess.State = StateWaiting
		}
	}
}

// newSessionID returns a short id suitable for shareable references.
func newSessionID() string {
	return uuid.NewString()[:8]
}
