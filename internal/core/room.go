package core

// Room groups the sessions currently joined to one drawing surface.
// A room has no explicit lifecycle: it comes into being on first join and
// is pruned once its last session leaves.
type Room struct {
	ID       int64
	sessions map[*Session]struct{}
}

// NewRoom constructs a room with no sessions.
func NewRoom(id int64) *Room {
	return &Room{
		ID:       id,
		sessions: make(map[*Session]struct{}),
	}
}

// AddSession inserts a session into the room. Returns true if newly added.
func (r *Room) AddSession(s *Session) bool {
	if _, exists := r.sessions[s]; exists {
		return false
	}
	r.sessions[s] = struct{}{}
	return true
}

// RemoveSession deletes a session from the room. Returns true if removed.
func (r *Room) RemoveSession(s *Session) bool {
	if _, exists := r.sessions[s]; !exists {
		return false
	}
	delete(r.sessions, s)
	return true
}

// Broadcast sends an event to all sessions in the room, including the
// originator. Slow consumers are skipped; the number of dropped deliveries
// is returned so the caller can log them.
func (r *Room) Broadcast(event *Event) int {
	dropped := 0
	for session := range r.sessions {
		select {
		case session.Events <- event:
		default:
			dropped++
		}
	}
	return dropped
}

// Empty returns true if no sessions are in the room.
func (r *Room) Empty() bool {
	return len(r.sessions) == 0
}

// Len returns the number of sessions in the room.
func (r *Room) Len() int {
	return len(r.sessions)
}
