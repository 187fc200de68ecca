package client

import (
	"fmt"
	"testing"

	"github.com/sketchwire/sketchwire-server/internal/core"
)

func snapshotOf(ids ...string) Snapshot {
	s := make(Snapshot, 0, len(ids))
	for _, id := range ids {
		s = append(s, core.Element{ID: id, Kind: core.KindRectangle})
	}
	return s
}

func firstID(t *testing.T, s Snapshot) string {
	t.Helper()
	if len(s) == 0 {
		t.Fatal("empty snapshot")
	}
	return s[0].ID
}

func TestHistoryUndoRedoRoundTrip(t *testing.T) {
	h := NewHistory()

	const k = 10
	for i := 0; i < k; i++ {
		h.Push(snapshotOf(fmt.Sprintf("el-%d", i)))
	}

	for i := 0; i < k-1; i++ {
		if _, ok := h.Undo(); !ok {
			t.Fatalf("undo %d failed", i)
		}
	}
	if _, ok := h.Undo(); ok {
		t.Fatal("undo at the initial snapshot must be a no-op")
	}

	var last Snapshot
	for i := 0; i < k-1; i++ {
		s, ok := h.Redo()
		if !ok {
			t.Fatalf("redo %d failed", i)
		}
		last = s
	}
	if got := firstID(t, last); got != fmt.Sprintf("el-%d", k-1) {
		t.Fatalf("redo chain ended at %q, want el-%d", got, k-1)
	}
	if _, ok := h.Redo(); ok {
		t.Fatal("redo at the latest snapshot must be a no-op")
	}
}

func TestHistoryPushTruncatesRedoTail(t *testing.T) {
	h := NewHistory()
	h.Push(snapshotOf("a"))
	h.Push(snapshotOf("b"))
	h.Push(snapshotOf("c"))

	if _, ok := h.Undo(); !ok {
		t.Fatal("undo failed")
	}
	h.Push(snapshotOf("d"))

	if _, ok := h.Redo(); ok {
		t.Fatal("push must discard the redo tail")
	}
	s, ok := h.Undo()
	if !ok || firstID(t, s) != "b" {
		t.Fatalf("expected undo to b, got %v ok=%v", s, ok)
	}
}

func TestHistoryEvictsOldestAtCapacity(t *testing.T) {
	h := NewHistory()
	for i := 0; i < maxHistory+10; i++ {
		h.Push(snapshotOf(fmt.Sprintf("el-%d", i)))
	}
	if h.Len() != maxHistory {
		t.Fatalf("len = %d, want %d", h.Len(), maxHistory)
	}

	// Drain the stack: the oldest surviving snapshot is the 11th push.
	var last Snapshot
	for {
		s, ok := h.Undo()
		if !ok {
			break
		}
		last = s
	}
	if got := firstID(t, last); got != "el-10" {
		t.Fatalf("oldest snapshot = %q, want el-10", got)
	}
}

func TestHistoryCursorFollowsPushAfterEviction(t *testing.T) {
	h := NewHistory()
	for i := 0; i < maxHistory+1; i++ {
		h.Push(snapshotOf(fmt.Sprintf("el-%d", i)))
	}

	// Undo must step to the push before the latest, proving the cursor
	// still pointed at the just-pushed entry after the eviction.
	s, ok := h.Undo()
	if !ok || firstID(t, s) != fmt.Sprintf("el-%d", maxHistory-1) {
		t.Fatalf("undo after eviction returned %v", s)
	}
}

func TestHistorySnapshotsAreIsolated(t *testing.T) {
	h := NewHistory()
	mine := snapshotOf("a")
	h.Push(mine)
	h.Push(snapshotOf("b"))

	mine[0].ID = "mutated"

	s, ok := h.Undo()
	if !ok || firstID(t, s) != "a" {
		t.Fatalf("stored snapshot was aliased to caller slice: %v", s)
	}
}
