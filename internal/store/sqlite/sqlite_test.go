package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sketchwire/sketchwire-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendShapeAssignsIncreasingIdentities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.AppendShape(ctx, 7, 1, fmt.Sprintf(`{"id":"el-%d"}`, i))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if id <= last {
			t.Fatalf("identity %d not strictly greater than %d", id, last)
		}
		last = id
	}
}

func TestAppendShapeConcurrentNoDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 20
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.AppendShape(ctx, 7, 1, fmt.Sprintf(`{"id":"c-%d"}`, i))
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate identity %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d identities, got %d", n, len(seen))
	}
}

func TestUpsertShapeOverwritesNotAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AppendShape(ctx, 7, 1, `{"id":"el-1","x":10}`)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.UpsertShape(ctx, &id, 7, 1, `{"id":"el-1","x":20}`)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got != id {
		t.Fatalf("upsert changed identity: %d != %d", got, id)
	}

	shapes, err := s.ListShapesByRoom(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shapes) != 1 {
		t.Fatalf("expected one entry after upsert, got %d", len(shapes))
	}
	if shapes[0].Payload != `{"id":"el-1","x":20}` {
		t.Fatalf("payload not overwritten: %s", shapes[0].Payload)
	}
}

func TestUpsertShapeCreatesWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing := int64(42)
	got, err := s.UpsertShape(ctx, &missing, 7, 1, `{"id":"el-new"}`)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got != missing {
		t.Fatalf("expected requested identity %d, got %d", missing, got)
	}

	fresh, err := s.UpsertShape(ctx, nil, 7, 1, `{"id":"el-fresh"}`)
	if err != nil {
		t.Fatalf("upsert nil id: %v", err)
	}
	if fresh <= missing {
		t.Fatalf("fresh identity %d not beyond existing %d", fresh, missing)
	}
}

func TestDeleteShapeNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.DeleteShape(ctx, 999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListShapesByRoomDescendingAndScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.AppendShape(ctx, 7, 1, fmt.Sprintf(`{"n":%d}`, i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.AppendShape(ctx, 8, 1, `{"other":"room"}`); err != nil {
		t.Fatalf("append other room: %v", err)
	}

	shapes, err := s.ListShapesByRoom(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shapes) != 3 {
		t.Fatalf("expected 3 shapes, got %d", len(shapes))
	}
	for i := 1; i < len(shapes); i++ {
		if shapes[i].ID >= shapes[i-1].ID {
			t.Fatalf("not descending: %d then %d", shapes[i-1].ID, shapes[i].ID)
		}
	}
}

func TestRoundTripAfterCreatesAndUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := s.AppendShape(ctx, 7, 1, fmt.Sprintf(`{"id":"el-%d","v":0}`, i))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, id)
	}

	// Update two of them, twice each; final state must win.
	for _, id := range ids[:2] {
		for v := 1; v <= 2; v++ {
			payload := fmt.Sprintf(`{"id":"el","v":%d}`, v)
			if _, err := s.UpsertShape(ctx, &id, 7, 1, payload); err != nil {
				t.Fatalf("upsert: %v", err)
			}
		}
	}

	shapes, err := s.ListShapesByRoom(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shapes) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(shapes))
	}

	byID := make(map[int64]string)
	for _, shape := range shapes {
		byID[shape.ID] = shape.Payload
	}
	for _, id := range ids[:2] {
		if byID[id] != `{"id":"el","v":2}` {
			t.Fatalf("entry %d did not keep last update: %s", id, byID[id])
		}
	}
}

func TestUserAndRoomStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := s.GetUserByEmail(ctx, "alice@example.com"); err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	room, err := s.CreateRoom(ctx, "design-review", user.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	resolved, err := s.GetRoomBySlug(ctx, "design-review")
	if err != nil {
		t.Fatalf("resolve room: %v", err)
	}
	if resolved.ID != room.ID {
		t.Fatalf("slug resolved to wrong room: %d != %d", resolved.ID, room.ID)
	}

	if _, err := s.CreateRoom(ctx, "design-review", user.ID); err == nil {
		t.Fatal("expected duplicate slug to fail")
	}
}
