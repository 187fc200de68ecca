package client

import "github.com/sketchwire/sketchwire-server/internal/core"

// maxHistory bounds the undo stack. Oldest snapshots are evicted first.
const maxHistory = 50

// Snapshot is a full copy of the element collection at one point in time.
type Snapshot []core.Element

// History is a bounded undo/redo stack over full-state snapshots. Every
// applied mutation pushes the whole collection, not a diff; the O(size)
// copy per edit is a deliberate simplicity trade-off.
//
// History is not safe for concurrent use; the owning reconciler serializes
// access.
type History struct {
	snapshots []Snapshot
	cursor    int
}

// NewHistory returns an empty history. The first Push establishes the
// baseline snapshot that undo stops at.
func NewHistory() *History {
	return &History{cursor: -1}
}

// Push records a new snapshot. Any redo-able tail beyond the cursor is
// discarded, and once the stack exceeds capacity the oldest snapshot is
// evicted so the cursor keeps pointing at the entry just pushed.
func (h *History) Push(s Snapshot) {
	h.snapshots = append(h.snapshots[:h.cursor+1], cloneSnapshot(s))
	if len(h.snapshots) > maxHistory {
		h.snapshots = h.snapshots[1:]
	}
	h.cursor = len(h.snapshots) - 1
}

// Undo steps back one snapshot. At the initial snapshot it is a no-op and
// returns false.
func (h *History) Undo() (Snapshot, bool) {
	if h.cursor <= 0 {
		return nil, false
	}
	h.cursor--
	return cloneSnapshot(h.snapshots[h.cursor]), true
}

// Redo steps forward one snapshot. At the latest snapshot it is a no-op
// and returns false.
func (h *History) Redo() (Snapshot, bool) {
	if h.cursor < 0 || h.cursor >= len(h.snapshots)-1 {
		return nil, false
	}
	h.cursor++
	return cloneSnapshot(h.snapshots[h.cursor]), true
}

// Len reports the number of retained snapshots.
func (h *History) Len() int {
	return len(h.snapshots)
}

// Reset drops all snapshots, e.g. after a bootstrap replaces local state.
func (h *History) Reset() {
	h.snapshots = nil
	h.cursor = -1
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
