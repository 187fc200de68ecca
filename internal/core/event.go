package core

import "encoding/json"

// EventKind is a notification the relay emits to sessions.
type EventKind int

const (
	// EventElementCreated carries a freshly persisted element to the room,
	// sender included.
	EventElementCreated EventKind = iota
	// EventElementUpdated carries a last-write-wins element update.
	EventElementUpdated
	// EventElementDeleted notifies the room that an element was removed.
	EventElementDeleted
	// EventError notifies a single session about a domain error.
	EventError
)

// Event is sent to sessions to describe what happened in a room.
type Event struct {
	Kind   EventKind
	RoomID int64
	ChatID *int64

	// Payload is the JSON-encoded element for created events.
	Payload string

	// Shape is the scrubbed element object for updated events.
	Shape json.RawMessage

	// ElementID identifies the element for deleted events.
	ElementID string

	Error *CoreError
}
