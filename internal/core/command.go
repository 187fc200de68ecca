package core

import "encoding/json"

// CommandKind describes what the session wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the session to a room. Idempotent.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the session from a room. Idempotent.
	CommandLeaveRoom
	// CommandCreateElement persists a new element and fans it out.
	CommandCreateElement
	// CommandUpdateElement fans out an element update and persists it
	// asynchronously.
	CommandUpdateElement
	// CommandDeleteElement removes an element from the store and fans the
	// deletion out.
	CommandDeleteElement
)

// Command represents an action requested by a session.
type Command struct {
	Kind   CommandKind
	RoomID int64

	// Payload is the JSON-encoded element for create commands.
	Payload string

	// Shape is the full element object for update commands.
	Shape json.RawMessage

	// ElementID identifies the element for delete commands.
	ElementID string

	// ChatID is the store-assigned identity for update/delete commands.
	ChatID *int64
}
