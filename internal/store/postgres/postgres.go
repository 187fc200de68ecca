package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sketchwire/sketchwire-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rooms (
	id         BIGSERIAL PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	admin_id   BIGINT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shapes (
	id         BIGSERIAL PRIMARY KEY,
	room_id    BIGINT NOT NULL,
	user_id    BIGINT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_shapes_room ON shapes(room_id, id);
`

// PostgresStore implements store.Store for PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to the database and applies the schema.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ==== UserStore implementation ====

func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at
	`
	return s.scanUser(s.pool.QueryRow(ctx, query, username, email, passwordHash))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE id = $1
	`
	user, err := s.scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return user, err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE email = $1
	`
	user, err := s.scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
	}
	return user, err
}

func (s *PostgresStore) scanUser(row pgx.Row) (*store.User, error) {
	var user store.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

// ==== RoomStore implementation ====

func (s *PostgresStore) CreateRoom(ctx context.Context, slug string, adminID int64) (*store.Room, error) {
	query := `
		INSERT INTO rooms (slug, admin_id)
		VALUES ($1, $2)
		RETURNING id, slug, admin_id, created_at
	`
	return s.scanRoom(s.pool.QueryRow(ctx, query, slug, adminID))
}

func (s *PostgresStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `SELECT id, slug, admin_id, created_at FROM rooms WHERE id = $1`
	room, err := s.scanRoom(s.pool.QueryRow(ctx, query, id))
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %d: %w", id, store.ErrNotFound)
	}
	return room, err
}

func (s *PostgresStore) GetRoomBySlug(ctx context.Context, slug string) (*store.Room, error) {
	query := `SELECT id, slug, admin_id, created_at FROM rooms WHERE slug = $1`
	room, err := s.scanRoom(s.pool.QueryRow(ctx, query, slug))
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", slug, store.ErrNotFound)
	}
	return room, err
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, slug, admin_id, created_at FROM rooms ORDER BY id DESC`)
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

func (s *PostgresStore) scanRoom(row pgx.Row) (*store.Room, error) {
	var room store.Room
	if err := row.Scan(&room.ID, &room.Slug, &room.AdminID, &room.CreatedAt); err != nil {
		return nil, err
	}
	return &room, nil
}

// ==== ShapeStore implementation ====

// AppendShape relies on BIGSERIAL for atomic, strictly increasing identity
// assignment under concurrent inserts.
func (s *PostgresStore) AppendShape(ctx context.Context, roomID, userID int64, payload string) (int64, error) {
	query := `
		INSERT INTO shapes (room_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id int64
	if err := s.pool.QueryRow(ctx, query, roomID, userID, payload).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert shape: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpsertShape(ctx context.Context, id *int64, roomID, userID int64, payload string) (int64, error) {
	if id == nil {
		return s.AppendShape(ctx, roomID, userID, payload)
	}

	query := `
		INSERT INTO shapes (id, room_id, user_id, message)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET message = EXCLUDED.message
	`
	if _, err := s.pool.Exec(ctx, query, *id, roomID, userID, payload); err != nil {
		return 0, fmt.Errorf("upsert shape: %w", err)
	}
	return *id, nil
}

func (s *PostgresStore) DeleteShape(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM shapes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete shape: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shape %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListShapesByRoom(ctx context.Context, roomID int64) ([]*store.Shape, error) {
	query := `
		SELECT id, room_id, user_id, message, created_at
		FROM shapes
		WHERE room_id = $1
		ORDER BY id DESC
	`
	rows, err := s.pool.Query(ctx, query, roomID)
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
