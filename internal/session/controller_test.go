package session_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/peer"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/session"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/signaling"
)

// busFactory binds a controller to an in-process bus instead of a relay.
func busFactory(bus *signaling.LocalBus) session.ChannelFactory {
	return func(_ context.Context, _, peerID string) (signaling.Channel, error) {
		return bus.Join(peerID), nil
	}
}

// waitFor polls cond until it holds or the deadline passes. The bus delivers
// on fresh goroutines, so every cross-controller assertion must poll.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *eventRecorder) record(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) find(k session.EventKind) (session.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == k {
			return ev, true
		}
	}
	return session.Event{}, false
}

func (r *eventRecorder) has(k session.EventKind) bool {
	_, ok := r.find(k)
	return ok
}

// hostAndGuest stands up a connected pair over one bus, both in
// signaling-only mode, and waits until both rosters agree.
func hostAndGuest(t *testing.T, bus *signaling.LocalBus) (*session.Controller, *session.Controller) {
	t.Helper()

	host := session.New(busFactory(bus), session.WithoutDirectTransport())
	if _, err := host.CreateSession(context.Background(), "Ann", 4, ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ref, err := host.ShareableSessionRef()
	if err != nil {
		t.Fatalf("ShareableSessionRef: %v", err)
	}

	guest := session.New(busFactory(bus), session.WithoutDirectTransport())
	if _, err := guest.JoinSession(context.Background(), ref, "Bea"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}

	waitFor(t, func() bool {
		h, g := host.CurrentSession(), guest.CurrentSession()
		return h != nil && g != nil &&
			len(h.Players) == 2 && len(g.Players) == 2 &&
			g.HostID == host.SelfID()
	}, "host and guest never converged on the roster")
	return host, guest
}

func TestAtMostOneSessionPerProcess(t *testing.T) {
	bus := signaling.NewLocalBus()
	c := session.New(busFactory(bus), session.WithoutDirectTransport())

	if _, err := c.CreateSession(context.Background(), "Ann", 4, ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := c.CreateSession(context.Background(), "Ann", 4, ""); !errors.Is(err, session.ErrAlreadyInSession) {
		t.Fatalf("second create = %v, want ErrAlreadyInSession", err)
	}
	if _, err := c.JoinSession(context.Background(), "abcd1234", "Ann"); !errors.Is(err, session.ErrAlreadyInSession) {
		t.Fatalf("join while hosting = %v, want ErrAlreadyInSession", err)
	}

	if err := c.LeaveSession(); err != nil {
		t.Fatalf("LeaveSession: %v", err)
	}
	// Leaving frees the slot.
	if _, err := c.CreateSession(context.Background(), "Ann", 4, ""); err != nil {
		t.Fatalf("create after leave: %v", err)
	}
}

func TestOutsideSessionErrors(t *testing.T) {
	c := session.New(busFactory(signaling.NewLocalBus()), session.WithoutDirectTransport())

	if err := c.SendMove([]byte("x")); !errors.Is(err, session.ErrNotInSession) {
		t.Fatalf("SendMove = %v, want ErrNotInSession", err)
	}
	if err := c.SetPlayerReady(true); !errors.Is(err, session.ErrNotInSession) {
		t.Fatalf("SetPlayerReady = %v, want ErrNotInSession", err)
	}
	if _, err := c.ShareableSessionRef(); !errors.Is(err, session.ErrNotInSession) {
		t.Fatalf("ShareableSessionRef = %v, want ErrNotInSession", err)
	}
	if err := c.LeaveSession(); err != nil {
		t.Fatalf("LeaveSession outside a session = %v, want nil", err)
	}
}

func TestHostGuestRosterConvergence(t *testing.T) {
	bus := signaling.NewLocalBus()
	host, guest := hostAndGuest(t, bus)

	g := guest.CurrentSession()
	if g.HostID != host.SelfID() {
		t.Fatalf("guest HostID = %q, want %q", g.HostID, host.SelfID())
	}
	hostEntry := g.Player(host.SelfID())
	if hostEntry == nil || hostEntry.Role != session.RoleHost {
		t.Fatalf("guest's view of host = %+v, want role host", hostEntry)
	}
	if hostEntry.Name != "Ann" {
		t.Fatalf("host name = %q, want Ann", hostEntry.Name)
	}
	if host.IsHost() == guest.IsHost() {
		t.Fatal("exactly one side must be host")
	}

	h := host.CurrentSession()
	guestEntry := h.Player(guest.SelfID())
	if guestEntry == nil || guestEntry.Role != session.RoleGuest || guestEntry.Name != "Bea" {
		t.Fatalf("host's view of guest = %+v", guestEntry)
	}
}

func TestGuestCannotDriveLifecycle(t *testing.T) {
	bus := signaling.NewLocalBus()
	_, guest := hostAndGuest(t, bus)

	before := guest.CurrentSession()
	if err := guest.StartActivity("tictactoe"); !errors.Is(err, session.ErrUnauthorized) {
		t.Fatalf("guest StartActivity = %v, want ErrUnauthorized", err)
	}
	if err := guest.SelectActivity("tictactoe"); !errors.Is(err, session.ErrUnauthorized) {
		t.Fatalf("guest SelectActivity = %v, want ErrUnauthorized", err)
	}
	if err := guest.SendAuthoritativeState([]byte("{}")); !errors.Is(err, session.ErrUnauthorized) {
		t.Fatalf("guest SendAuthoritativeState = %v, want ErrUnauthorized", err)
	}

	after := guest.CurrentSession()
	if after.State != before.State || after.ActivityID != before.ActivityID {
		t.Fatalf("rejected call mutated session: %+v -> %+v", before, after)
	}
}

func TestDuplicateJoinIsIdempotent(t *testing.T) {
	bus := signaling.NewLocalBus()
	host := session.New(busFactory(bus), session.WithoutDirectTransport())
	sess, err := host.CreateSession(context.Background(), "Ann", 4, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Publish the same join twice, as a flaky medium would.
	raw := bus.Join("ghost")
	env := envelope.New(envelope.KindPlayerJoin, sess.ID, "ghost", envelope.RecipientAll,
		envelope.MarshalPayload(envelope.JoinPayload{Name: "Ghost"}))
	raw.Publish(env)
	raw.Publish(env)

	waitFor(t, func() bool {
		return host.CurrentSession().Player("ghost") != nil
	}, "join never landed")

	time.Sleep(50 * time.Millisecond) // allow the duplicate to arrive
	if got := len(host.CurrentSession().Players); got != 2 {
		t.Fatalf("roster size = %d, want 2", got)
	}
}

func TestHostAPIResponsiveWhileHandlingJoins(t *testing.T) {
	bus := signaling.NewLocalBus()
	host := session.New(busFactory(bus), session.WithoutDirectTransport())
	sess, err := host.CreateSession(context.Background(), "Ann", 4, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// The host reacts to a join by replying and dialing; none of that may
	// wedge the controller against its own mutex.
	raw := bus.Join("g1")
	raw.Publish(envelope.New(envelope.KindPlayerJoin, sess.ID, "g1", envelope.RecipientAll,
		envelope.MarshalPayload(envelope.JoinPayload{Name: "One"})))
	waitFor(t, func() bool {
		return host.CurrentSession().Player("g1") != nil
	}, "join never landed")

	done := make(chan error, 1)
	go func() { done <- host.SetPlayerReady(true) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SetPlayerReady: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("controller blocked after handling a join")
	}
}

func TestSignalingLossFailsSession(t *testing.T) {
	bus := signaling.NewLocalBus()
	var ch *signaling.LocalChannel
	factory := func(_ context.Context, _, peerID string) (signaling.Channel, error) {
		ch = bus.Join(peerID)
		return ch, nil
	}

	ctl := session.New(factory, session.WithoutDirectTransport())
	var rec eventRecorder
	ctl.OnAny(rec.record)
	if _, err := ctl.CreateSession(context.Background(), "Ann", 4, ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ch.Close() // the medium dies under the live session

	waitFor(t, func() bool {
		return rec.has(session.EventConnectionError)
	}, "signaling loss never surfaced")
	ev, _ := rec.find(session.EventConnectionError)
	if !errors.Is(ev.Err, session.ErrSignalingLost) {
		t.Fatalf("err = %v, want ErrSignalingLost", ev.Err)
	}
	if got := ctl.CurrentSession().State; got != session.StateError {
		t.Fatalf("state = %s, want %s", got, session.StateError)
	}
}

func TestSessionFullRejectsJoin(t *testing.T) {
	bus := signaling.NewLocalBus()
	host := session.New(busFactory(bus), session.WithoutDirectTransport())
	sess, err := host.CreateSession(context.Background(), "Ann", 2, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	raw := bus.Join("filler")
	raw.Publish(envelope.New(envelope.KindPlayerJoin, sess.ID, "g1", envelope.RecipientAll,
		envelope.MarshalPayload(envelope.JoinPayload{Name: "One"})))
	waitFor(t, func() bool {
		return host.CurrentSession().Player("g1") != nil
	}, "first join never landed")

	raw.Publish(envelope.New(envelope.KindPlayerJoin, sess.ID, "g2", envelope.RecipientAll,
		envelope.MarshalPayload(envelope.JoinPayload{Name: "Two"})))
	time.Sleep(50 * time.Millisecond)
	if host.CurrentSession().Player("g2") != nil {
		t.Fatal("join beyond maxPlayers was accepted")
	}
}

func TestReadyAndActivityLifecycle(t *testing.T) {
	bus := signaling.NewLocalBus()
	host, guest := hostAndGuest(t, bus)

	if err := host.SetPlayerReady(true); err != nil {
		t.Fatalf("host ready: %v", err)
	}
	if err := guest.SetPlayerReady(true); err != nil {
		t.Fatalf("guest ready: %v", err)
	}
	waitFor(t, func() bool {
		return host.CurrentSession().State == session.StateReady &&
			guest.CurrentSession().State == session.StateReady
	}, "session never reached ready")

	// Un-readying drops the session back to waiting.
	guest.SetPlayerReady(false)
	waitFor(t, func() bool {
		return host.CurrentSession().State == session.StateWaiting
	}, "session never fell back to waiting")
	guest.SetPlayerReady(true)
	waitFor(t, func() bool {
		return host.CurrentSession().State == session.StateReady
	}, "session never recovered ready")

	if err := host.StartActivity("tictactoe"); err != nil {
		t.Fatalf("StartActivity: %v", err)
	}
	waitFor(t, func() bool {
		h, g := host.CurrentSession(), guest.CurrentSession()
		return h.State == session.StatePlaying && g.State == session.StatePlaying &&
			g.ActivityID == "tictactoe"
	}, "activity start never propagated")

	if err := host.CompleteActivity(); err != nil {
		t.Fatalf("CompleteActivity: %v", err)
	}
	waitFor(t, func() bool {
		return guest.CurrentSession().State == session.StateFinished
	}, "finish never propagated")

	if err := host.Rematch(); err != nil {
		t.Fatalf("Rematch: %v", err)
	}
	waitFor(t, func() bool {
		h := host.CurrentSession()
		if h.State != session.StateWaiting {
			return false
		}
		for _, p := range h.Players {
			if p.Ready {
				return false
			}
		}
		return guest.CurrentSession().State == session.StateWaiting
	}, "rematch never reset the session")
}

func TestMovePayloadReachesEveryObserver(t *testing.T) {
	bus := signaling.NewLocalBus()
	host, guest := hostAndGuest(t, bus)

	var hostRec, guestRec eventRecorder
	host.On(session.EventMoveReceived, hostRec.record)
	guest.On(session.EventMoveReceived, guestRec.record)

	payload := []byte(`{"cell":4,"mark":"x"}`)
	if err := guest.SendMove(payload); err != nil {
		t.Fatalf("SendMove: %v", err)
	}

	waitFor(t, func() bool {
		return hostRec.has(session.EventMoveReceived) && guestRec.has(session.EventMoveReceived)
	}, "move never reached both observers")

	hev, _ := hostRec.find(session.EventMoveReceived)
	if !bytes.Equal(hev.Payload, payload) {
		t.Fatalf("host payload = %s, want %s", hev.Payload, payload)
	}
	if hev.PlayerID != guest.SelfID() {
		t.Fatalf("move attributed to %q, want %q", hev.PlayerID, guest.SelfID())
	}
	// The sender hears its own move through the local echo path.
	gev, _ := guestRec.find(session.EventMoveReceived)
	if !bytes.Equal(gev.Payload, payload) {
		t.Fatalf("echo payload = %s, want %s", gev.Payload, payload)
	}
}

func TestLeaveRemovesRosterEntry(t *testing.T) {
	bus := signaling.NewLocalBus()
	host, guest := hostAndGuest(t, bus)
	guestID := guest.SelfID()

	var rec eventRecorder
	host.On(session.EventPlayerDisconnected, rec.record)

	if err := guest.LeaveSession(); err != nil {
		t.Fatalf("LeaveSession: %v", err)
	}
	waitFor(t, func() bool {
		return host.CurrentSession().Player(guestID) == nil
	}, "departed guest still on roster")
	if !rec.has(session.EventPlayerDisconnected) {
		t.Fatal("no player-disconnected event for the leave")
	}
	if guest.CurrentSession() != nil {
		t.Fatal("guest still has a session after leaving")
	}
	if err := guest.LeaveSession(); err != nil {
		t.Fatalf("second LeaveSession = %v, want nil", err)
	}
}

// stalledConn negotiates but never opens, standing in for an unreachable peer.
type stalledConn struct{}

func (stalledConn) CreateOffer() (string, string, error)  { return "offer", "sdp", nil }
func (stalledConn) CreateAnswer() (string, string, error) { return "answer", "sdp", nil }
func (stalledConn) ApplyRemoteDescription(_, _ string) error { return nil }
func (stalledConn) ApplyFragment(string) error               { return nil }
func (stalledConn) OnFragment(func(string))                  {}
func (stalledConn) OnOpen(func())                            {}
func (stalledConn) OnClose(func())                           {}
func (stalledConn) OnMessage(func([]byte))                   {}
func (stalledConn) Send([]byte) error                        { return nil }
func (stalledConn) Close() error                             { return nil }

func TestFailedNegotiationKeepsRosterEntry(t *testing.T) {
	bus := signaling.NewLocalBus()
	host := session.New(busFactory(bus),
		session.WithConnFactory(func() (peer.Conn, error) { return stalledConn{}, nil }),
		session.WithNegotiationTimeout(50*time.Millisecond))
	if _, err := host.CreateSession(context.Background(), "Ann", 4, ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ref, _ := host.ShareableSessionRef()

	var rec eventRecorder
	host.OnAny(rec.record)

	guest := session.New(busFactory(bus), session.WithoutDirectTransport())
	if _, err := guest.JoinSession(context.Background(), ref, "Bea"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	guestID := guest.SelfID()

	waitFor(t, func() bool {
		return rec.has(session.EventConnectionError)
	}, "negotiation timeout never surfaced")

	ev, _ := rec.find(session.EventConnectionError)
	if !errors.Is(ev.Err, session.ErrNegotiationTimeout) {
		t.Fatalf("connection error = %v, want ErrNegotiationTimeout", ev.Err)
	}

	waitFor(t, func() bool {
		p := host.CurrentSession().Player(guestID)
		return p != nil && p.ConnState == session.ConnDisconnected
	}, "guest entry missing or not marked disconnected")
	if got := len(host.CurrentSession().Players); got != 2 {
		t.Fatalf("roster size = %d, want 2 (disconnection must not evict)", got)
	}
}
