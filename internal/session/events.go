package session

import "sync"

// EventKind enumerates everything the session layer reports to collaborators
// (game UIs, persistence). A typed enum instead of string-keyed emitters:
// misspelled registrations fail to compile rather than silently never firing.
type EventKind int

const (
	EventSessionCreated EventKind = iota
	EventSessionJoined
	EventPlayerConnected
	EventPlayerDisconnected
	EventPlayerReadyChanged
	EventActivitySelected
	EventActivityStarted
	EventMoveReceived
	EventStateUpdated
	EventConnectionError
)

var eventNames = map[EventKind]string{
	EventSessionCreated:     "session-created",
	EventSessionJoined:      "session-joined",
	EventPlayerConnected:    "player-connected",
	EventPlayerDisconnected: "player-disconnected",
	EventPlayerReadyChanged: "player-ready-changed",
	EventActivitySelected:   "activity-selected",
	EventActivityStarted:    "activity-started",
	EventMoveReceived:       "move-received",
	EventStateUpdated:       "state-updated",
	EventConnectionError:    "connection-error",
}

func (k EventKind) String() string { return eventNames[k] }

// Event carries everything an observer needs. Session is a snapshot taken at
// emit time; Payload is the untouched application payload for move/state
// events; Err is set only for EventConnectionError.
type Event struct {
	Kind       EventKind
	PlayerID   string
	ActivityID string
	Payload    []byte
	Session    *Session
	Err        error
}

// Listener observes events. Listeners run on the emitting goroutine and must
// not block; anything slow belongs on the listener's own goroutine.
type Listener func(Event)

// eventBus is an enum-keyed observer registry.
type eventBus struct {
	mu     sync.RWMutex
	byKind map[EventKind][]Listener
	all    []Listener
}

func (b *eventBus) on(k EventKind, fn Listener) {
	b.mu.Lock()
	if b.byKind == nil {
		b.byKind = make(map[EventKind][]Listener)
	}
	b.byKind[k] = append(b.byKind[k], fn)
	b.mu.Unlock()
}

func (b *eventBus) onAny(fn Listener) {
	b.mu.Lock()
	b.all = append(b.all, fn)
	b.mu.Unlock()
}

func (b *eventBus) emit(ev Event) {
	b.mu.RLock()
	kind := b.byKind[ev.Kind]
	all := b.all
	b.mu.RUnlock()

	for _, fn := range kind {
		fn(ev)
	}
	for _, fn := range all {
		fn(ev)
	}
}
