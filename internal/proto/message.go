package proto

import "encoding/json"

// Frame is the single envelope for every message exchanged over the
// WebSocket transport, in both directions. Which fields are meaningful
// depends on Type; unknown fields are ignored by decoders.
type Frame struct {
	Type string `json:"type"`

	RoomID int64 `json:"roomId,omitempty"`

	// Message carries a JSON-encoded element for create frames. It is a
	// string on the wire (the payload is opaque to the relay).
	Message string `json:"message,omitempty"`

	// Shape carries the full element object for update frames.
	Shape json.RawMessage `json:"shape,omitempty"`

	// ElementID is the client-generated element identity for delete frames.
	ElementID string `json:"elementId,omitempty"`

	// ChatID is the store-assigned identity. Nil until the store has
	// acknowledged the element.
	ChatID *int64 `json:"chatId,omitempty"`

	Error *Error `json:"error,omitempty"`
}

const (
	ProtocolVersion = 1

	// Inbound frame types.
	TypeJoinRoom    = "join_room"
	TypeLeaveRoom   = "leave_room"
	TypeChat        = "chat"
	TypeUpdateShape = "update_shape"
	TypeDelete      = "delete"

	// Outbound frame types. TypeChat and TypeDelete are echoed back with
	// the same type tag; updates go out as TypeShapeUpdated.
	TypeShapeUpdated = "shape_updated"
	TypeError        = "error"
)

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// ChatFrame builds the broadcast envelope for a freshly persisted element.
func ChatFrame(roomID, chatID int64, message string) Frame {
	id := chatID
	return Frame{Type: TypeChat, RoomID: roomID, ChatID: &id, Message: message}
}

// ShapeUpdatedFrame builds the broadcast envelope for an updated element.
func ShapeUpdatedFrame(roomID int64, chatID *int64, shape json.RawMessage) Frame {
	return Frame{Type: TypeShapeUpdated, RoomID: roomID, ChatID: chatID, Shape: shape}
}

// DeleteFrame builds the broadcast envelope for a deleted element.
func DeleteFrame(roomID, chatID int64, elementID string) Frame {
	id := chatID
	return Frame{Type: TypeDelete, RoomID: roomID, ChatID: &id, ElementID: elementID}
}

// ErrorFrame builds an error envelope addressed to a single session.
func ErrorFrame(code, msg string) Frame {
	return Frame{Type: TypeError, Error: &Error{Code: code, Msg: msg}}
}
