// Package session owns the authoritative session record — players, roles,
// readiness, selected activity, lifecycle state — and mediates every
// operation the embedding application performs on it.
package session

import "time"

// Role distinguishes the session host from guests. The host is the only
// participant allowed to select/start activities and push authoritative
// state, and the only side that initiates direct connections (star topology).
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// ConnState is a player's direct-transport connectivity as seen locally.
// Players falling back to the signaling channel stay usable regardless.
type ConnState string

const (
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
)

// LifecycleState is the session's lifecycle position. Error is reachable
// from any state.
type LifecycleState string

const (
	StateCreating LifecycleState = "creating"
	StateWaiting  LifecycleState = "waiting"
	StateReady    LifecycleState = "ready"
	StatePlaying  LifecycleState = "playing"
	StateFinished LifecycleState = "finished"
	StateError    LifecycleState = "error"
)

// Player is one participant's roster entry. ID is immutable once assigned;
// ConnState and Ready are mutated only by the Controller.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"displayName"`
	Role      Role      `json:"role"`
	ConnState ConnState `json:"connectionState"`
	Ready     bool      `json:"isReady"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Session is the shared per-game-instance record. HostID never changes for
// the life of a session. Players keeps insertion order and is unique by id.
type Session struct {
	ID         string         `json:"id"`
	HostID     string         `json:"hostId"`
	Players    []*Player      `json:"players"`
	MaxPlayers int            `json:"maxPlayers"`
	ActivityID string         `json:"activityId,omitempty"`
	State      LifecycleState `json:"lifecycleState"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Player returns the roster entry for id, or nil.
func (s *Session) Player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// upsertPlayer adds the player or updates the existing entry in place,
// keeping the roster unique by id and in insertion order. Join replays are
// therefore idempotent. Returns true when the player was new.
func (s *Session) upsertPlayer(p *Player) bool {
	if existing := s.Player(p.ID); existing != nil {
		existing.Name = p.Name
		existing.Role = p.Role
		return false
	}
	s.Players = append(s.Players, p)
	return true
}

// removePlayer deletes the roster entry for id. Only an explicit leave or a
// local leaveSession removes players; disconnects merely flip ConnState.
func (s *Session) removePlayer(id string) bool {
	for i, p := range s.Players {
		if p.ID == id {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return true
		}
	}
	return false
}

// allReady reports whether every rostered player is ready. A lone host does
// not make a session ready.
func (s *Session) allReady() bool {
	if len(s.Players) < 2 {
		return false
	}
	for _, p := range s.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand to observers or serialize into a
// session-sync payload.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		out.Players[i] = &cp
	}
	return &out
}
