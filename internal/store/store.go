package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a named collaboration scope. Slug is the human-readable
// name resolved to the numeric identity all events are partitioned by.
type Room struct {
	ID        int64
	Slug      string
	AdminID   int64
	CreatedAt time.Time
}

// Shape is one entry of the append-only per-room element log. Payload is the
// JSON-encoded element, opaque to the store.
type Shape struct {
	ID        int64
	RoomID    int64
	UserID    int64
	Payload   string
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with a hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a new room owned by adminID.
	CreateRoom(ctx context.Context, slug string, adminID int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// GetRoomBySlug resolves a room name to its record.
	GetRoomBySlug(ctx context.Context, slug string) (*Room, error)

	// ListRooms lists all rooms, most recent first.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// ShapeStore handles the append-only element log. The store assigns each
// appended shape a strictly increasing identity within its backing sequence,
// which doubles as the upsert key for all later updates.
type ShapeStore interface {
	// AppendShape stores a new element and returns its assigned identity.
	AppendShape(ctx context.Context, roomID, userID int64, payload string) (int64, error)

	// UpsertShape overwrites the payload of the entry keyed by id, or
	// creates the entry if it does not exist. A nil id always creates,
	// with a fresh store-assigned identity. Returns the effective identity.
	UpsertShape(ctx context.Context, id *int64, roomID, userID int64, payload string) (int64, error)

	// DeleteShape removes the entry keyed by id. Returns ErrNotFound if no
	// such entry exists.
	DeleteShape(ctx context.Context, id int64) error

	// ListShapesByRoom returns the room's full log ordered by identity
	// descending, the order the bootstrap endpoint serves it in.
	ListShapesByRoom(ctx context.Context, roomID int64) ([]*Shape, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	ShapeStore

	// Close closes the underlying database connection.
	Close() error
}
