package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sketchwire/sketchwire-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	slug       TEXT NOT NULL UNIQUE,
	admin_id   INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (admin_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS shapes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    INTEGER NOT NULL,
	user_id    INTEGER NOT NULL,
	message    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_shapes_room ON shapes(room_id, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with a hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room owned by adminID.
func (s *SQLiteStore) CreateRoom(ctx context.Context, slug string, adminID int64) (*store.Room, error) {
	query := `
		INSERT INTO rooms (slug, admin_id)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, slug, adminID)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetRoomByID(ctx, id)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `
		SELECT id, slug, admin_id, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Slug,
		&room.AdminID,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// GetRoomBySlug resolves a room name to its record.
func (s *SQLiteStore) GetRoomBySlug(ctx context.Context, slug string) (*store.Room, error) {
	query := `
		SELECT id, slug, admin_id, created_at
		FROM rooms
		WHERE slug = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&room.ID,
		&room.Slug,
		&room.AdminID,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", slug, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// ListRooms lists all rooms, most recent first.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `
		SELECT id, slug, admin_id, created_at
		FROM rooms
		ORDER BY id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Slug, &room.AdminID, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// ==== ShapeStore implementation ====

// AppendShape stores a new element and returns its assigned identity.
// AUTOINCREMENT guarantees identities are strictly increasing and never
// reused, even under concurrent submission.
func (s *SQLiteStore) AppendShape(ctx context.Context, roomID, userID int64, payload string) (int64, error) {
	query := `
		INSERT INTO shapes (room_id, user_id, message)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, roomID, userID, payload)
	if err != nil {
		return 0, fmt.Errorf("insert shape: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// UpsertShape overwrites the entry keyed by id, creating it if absent.
// A nil id always appends with a fresh identity.
func (s *SQLiteStore) UpsertShape(ctx context.Context, id *int64, roomID, userID int64, payload string) (int64, error) {
	if id == nil {
		return s.AppendShape(ctx, roomID, userID, payload)
	}

	query := `
		INSERT INTO shapes (id, room_id, user_id, message)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET message = excluded.message
	`
	if _, err := s.db.ExecContext(ctx, query, *id, roomID, userID, payload); err != nil {
		return 0, fmt.Errorf("upsert shape: %w", err)
	}
	return *id, nil
}

// DeleteShape removes the entry keyed by id.
func (s *SQLiteStore) DeleteShape(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM shapes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shape: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("shape %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListShapesByRoom returns the room's full log, identity descending.
func (s *SQLiteStore) ListShapesByRoom(ctx context.Context, roomID int64) ([]*store.Shape, error) {
	query := `
		SELECT id, room_id, user_id, message, created_at
		FROM shapes
		WHERE room_id = ?
		ORDER BY id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query shapes: %w", err)
	}
	defer rows.Close()

	var shapes []*store.Shape
	for rows.Next() {
		var shape store.Shape
		if err := rows.Scan(&shape.ID, &shape.RoomID, &shape.UserID, &shape.Payload, &shape.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan shape: %w", err)
		}
		shapes = append(shapes, &shape)
	}
	return shapes, rows.Err()
}
