package chat

import "sort"

// Outbox is the transport side of a session. Deliver must not block; a full
// or closed outbox reports an error wrapping ErrTransport. Close releases the
// transport and is called exactly once, when the session is removed.
type Outbox interface {
	Deliver(payload []byte) error
	Close()
}

// State is the lifecycle state of a session.
type State int

const (
	// StateConnected is a live session with no room memberships.
	StateConnected State = iota
	// StateInRoom is a live session that has joined at least one room.
	StateInRoom
	// StateDisconnected is terminal.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the server-side state of one live connection.
type Session struct {
	id       string
	username string
	outbox   Outbox
	rooms    map[string]struct{}
	closed   bool
}

func newSession(id, username string, outbox Outbox) *Session {
	return &Session{
		id:       id,
		username: username,
		outbox:   outbox,
		rooms:    make(map[string]struct{}),
	}
}

// ID returns the transport-assigned connection identifier.
func (s *Session) ID() string { return s.id }

// Username returns the display name the session was created with.
func (s *Session) Username() string { return s.username }

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	switch {
	case s.closed:
		return StateDisconnected
	case len(s.rooms) > 0:
		return StateInRoom
	default:
		return StateConnected
	}
}

// Rooms returns the joined room identifiers in sorted order.
func (s *Session) Rooms() []string {
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// InRoom reports whether the session has joined room.
func (s *Session) InRoom(room string) bool {
	_, ok := s.rooms[room]
	return ok
}

// Send delivers a payload to this session only, e.g. an error notice.
func (s *Session) Send(payload []byte) error {
	return s.deliver(payload)
}

func (s *Session) deliver(payload []byte) error {
	if s.closed || s.outbox == nil {
		return ErrTransport
	}
	return s.outbox.Deliver(payload)
}
