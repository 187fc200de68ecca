package client

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sketchwire/sketchwire-server/internal/core"
)

var roomsBucket = []byte("rooms")

// Cache persists per-room element snapshots locally so a client can show
// the last known canvas before the bootstrap fetch completes. It is a
// convenience only; the relay's log remains authoritative.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (or creates) the snapshot database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(roomsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// SaveRoom overwrites the cached snapshot for the room.
func (c *Cache) SaveRoom(roomID int64, elements []core.Element) error {
	data, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(roomsBucket).Put(roomKey(roomID), data)
	})
}

// LoadRoom returns the cached snapshot, or (nil, nil) when the room has
// never been cached.
func (c *Cache) LoadRoom(roomID int64) ([]core.Element, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(roomsBucket).Get(roomKey(roomID)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var elements []core.Element
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return elements, nil
}

// Close releases the database file.
func (c *Cache) Close() error {
	return c.db.Close()
}

func roomKey(roomID int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(roomID))
	return key
}
