package core

// Session is one authenticated live connection as seen by the relay.
// UserID is resolved once at connect time and immutable thereafter.
type Session struct {
	ID       string
	UserID   int64
	Username string
	Commands chan *Command
	Events   chan *Event
	Rooms    map[int64]struct{}
}

// NewSession constructs a session with initialized channels.
func NewSession(id string, userID int64, username string) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		Username: username,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
		Rooms:    make(map[int64]struct{}),
	}
}
