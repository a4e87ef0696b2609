package chat

import (
	"fmt"
	"log/slog"
	"sort"
)

// Router maps room identifiers to member sessions. A room exists exactly
// while it has members; absence from the index is an empty room.
type Router struct {
	rooms  map[string]map[*Session]struct{}
	logger *slog.Logger
}

// BroadcastResult summarizes one fan-out. Failed lists members whose outbox
// rejected the event; the caller is expected to disconnect them.
type BroadcastResult struct {
	Delivered int
	Failed    []*Session
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		rooms:  make(map[string]map[*Session]struct{}),
		logger: logger,
	}
}

// Join adds s to room, creating the room on first use. Joining a room that
// s already belongs to is a no-op.
func (r *Router) Join(s *Session, room string) error {
	if s == nil {
		return fmt.Errorf("%w: nil session", ErrNotFound)
	}
	if s.closed {
		return fmt.Errorf("%w: session %s is disconnected", ErrNotFound, s.id)
	}
	if room == "" {
		return fmt.Errorf("%w: empty room", ErrValidation)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
	return nil
}

// Leave removes s from room and reports whether it was a member.
func (r *Router) Leave(s *Session, room string) bool {
	if s == nil {
		return false
	}
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, member := members[s]; !member {
		return false
	}

	delete(members, s)
	delete(s.rooms, room)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return true
}

// LeaveAll removes s from every room it joined and returns those rooms.
func (r *Router) LeaveAll(s *Session) []string {
	if s == nil {
		return nil
	}
	left := s.Rooms()
	for _, room := range left {
		r.Leave(s, room)
	}
	return left
}

// Broadcast delivers payload to every current member of room except
// exclude. A member whose delivery fails is logged and reported in the
// result; it never stops delivery to the others.
func (r *Router) Broadcast(room string, payload []byte, exclude *Session) BroadcastResult {
	var result BroadcastResult

	members, ok := r.rooms[room]
	if !ok {
		return result
	}

	for s := range members {
		if s == exclude {
			continue
		}
		if err := s.deliver(payload); err != nil {
			r.logger.Warn("dropping delivery to room member",
				"room", room,
				"conn_id", s.id,
				"username", s.username,
				"error", err,
			)
			result.Failed = append(result.Failed, s)
			continue
		}
		result.Delivered++
	}
	return result
}

// Members returns the sessions in room ordered by connection ID.
func (r *Router) Members(room string) []*Session {
	members := r.rooms[room]
	out := make([]*Session, 0, len(members))
	for s := range members {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// MemberCount returns the number of sessions in room.
func (r *Router) MemberCount(room string) int {
	return len(r.rooms[room])
}

// Rooms returns the non-empty rooms in sorted order.
func (r *Router) Rooms() []string {
	rooms := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// RoomCount returns the number of non-empty rooms.
func (r *Router) RoomCount() int {
	return len(r.rooms)
}
