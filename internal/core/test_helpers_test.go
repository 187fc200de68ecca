package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sketchwire/sketchwire-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func expectNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		if ev != nil {
			t.Fatalf("expected no event, got kind %v", ev.Kind)
		}
	case <-time.After(wait):
	}
}

// memShapeStore is an in-memory ShapeStore for hub tests.
type memShapeStore struct {
	mu         sync.Mutex
	nextID     int64
	entries    map[int64]*store.Shape
	failWrites bool
}

func newMemShapeStore() *memShapeStore {
	return &memShapeStore{entries: make(map[int64]*store.Shape)}
}

func (m *memShapeStore) AppendShape(_ context.Context, roomID, userID int64, payload string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return 0, errors.New("store unavailable")
	}
	m.nextID++
	m.entries[m.nextID] = &store.Shape{ID: m.nextID, RoomID: roomID, UserID: userID, Payload: payload}
	return m.nextID, nil
}

func (m *memShapeStore) UpsertShape(_ context.Context, id *int64, roomID, userID int64, payload string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return 0, errors.New("store unavailable")
	}
	if id != nil {
		if existing, ok := m.entries[*id]; ok {
			existing.Payload = payload
			return *id, nil
		}
		m.entries[*id] = &store.Shape{ID: *id, RoomID: roomID, UserID: userID, Payload: payload}
		if *id > m.nextID {
			m.nextID = *id
		}
		return *id, nil
	}
	m.nextID++
	m.entries[m.nextID] = &store.Shape{ID: m.nextID, RoomID: roomID, UserID: userID, Payload: payload}
	return m.nextID, nil
}

func (m *memShapeStore) DeleteShape(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memShapeStore) ListShapesByRoom(_ context.Context, roomID int64) ([]*store.Shape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var shapes []*store.Shape
	for _, s := range m.entries {
		if s.RoomID == roomID {
			copied := *s
			shapes = append(shapes, &copied)
		}
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].ID > shapes[j].ID })
	return shapes, nil
}

func (m *memShapeStore) payloadOf(id int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[id]
	if !ok {
		return "", false
	}
	return s.Payload, true
}
