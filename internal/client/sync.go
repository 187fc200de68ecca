package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sketchwire/sketchwire-server/internal/core"
	"github.com/sketchwire/sketchwire-server/internal/proto"
	"github.com/sketchwire/sketchwire-server/internal/utils"
)

// Sender pushes a frame to the relay. The socket implements it; tests
// substitute a recorder.
type Sender interface {
	Send(ctx context.Context, frame proto.Frame) error
}

// Reconciler owns one room's element collection on the client side. Local
// edits are applied immediately (optimistically) and emitted to the relay;
// echoes and peer edits arriving over the wire are merged in by element id.
// All mutations funnel through the reconciler, so rendering can consume
// Elements() read-only and undo/redo cannot race live updates.
type Reconciler struct {
	mu sync.Mutex

	roomID   int64
	sender   Sender
	elements []core.Element
	history  *History
	log      zerolog.Logger
}

// NewReconciler creates an empty reconciler for the room. Sender may be nil
// for offline use; local edits then mutate state without emitting frames.
func NewReconciler(roomID int64, sender Sender, logger *zerolog.Logger) *Reconciler {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	r := &Reconciler{
		roomID:  roomID,
		sender:  sender,
		history: NewHistory(),
		log:     lg,
	}
	r.history.Push(nil)
	return r
}

// SetSender installs the frame sender after construction. The socket and
// reconciler reference each other, so one of them has to be attached late.
func (r *Reconciler) SetSender(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

// RoomID reports the room this reconciler is bound to.
func (r *Reconciler) RoomID() int64 {
	return r.roomID
}

// Elements returns a copy of the current collection for rendering.
func (r *Reconciler) Elements() []core.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Element, len(r.elements))
	copy(out, r.elements)
	return out
}

// CreateElement applies a new element locally and emits the create frame.
// A missing client id is assigned here; the store identity arrives later
// with the echo.
func (r *Reconciler) CreateElement(ctx context.Context, el core.Element) error {
	if el.ID == "" {
		el.ID = utils.NewID()
	}
	el.ChatID = nil

	r.mu.Lock()
	r.elements = append(r.elements, el)
	r.history.Push(r.elements)
	sender := r.sender
	r.mu.Unlock()

	if sender == nil {
		return nil
	}
	payload, err := core.EncodeElement(el)
	if err != nil {
		return fmt.Errorf("encode element: %w", err)
	}
	return sender.Send(ctx, proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  r.roomID,
		Message: payload,
	})
}

// UpdateElement overwrites the local element matching the id and emits the
// update frame. The transient selection flag is cleared before the element
// goes on the wire.
func (r *Reconciler) UpdateElement(ctx context.Context, el core.Element) error {
	r.mu.Lock()
	replaced := r.replaceByID(el)
	if replaced {
		r.history.Push(r.elements)
	}
	sender := r.sender
	r.mu.Unlock()
	if !replaced {
		return fmt.Errorf("no local element with id %q", el.ID)
	}

	if sender == nil {
		return nil
	}
	wire := el
	wire.Selected = false
	shape, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode element: %w", err)
	}
	return sender.Send(ctx, proto.Frame{
		Type:   proto.TypeUpdateShape,
		RoomID: r.roomID,
		ChatID: el.ChatID,
		Shape:  shape,
	})
}

// DeleteElement removes the element locally and emits the delete frame.
// Elements that were never acknowledged by the store cannot be deleted
// remotely; they are only removed locally.
func (r *Reconciler) DeleteElement(ctx context.Context, el core.Element) error {
	r.mu.Lock()
	if r.removeByID(el.ID) {
		r.history.Push(r.elements)
	}
	sender := r.sender
	r.mu.Unlock()

	if sender == nil || el.ChatID == nil {
		return nil
	}
	return sender.Send(ctx, proto.Frame{
		Type:      proto.TypeDelete,
		RoomID:    r.roomID,
		ElementID: el.ID,
		ChatID:    el.ChatID,
	})
}

// HandleFrame merges one inbound frame into local state. Frames for other
// rooms are ignored.
func (r *Reconciler) HandleFrame(frame proto.Frame) {
	if frame.Type != proto.TypeError && frame.RoomID != r.roomID {
		return
	}

	switch frame.Type {
	case proto.TypeChat:
		r.applyCreate(frame)
	case proto.TypeShapeUpdated:
		r.applyUpdate(frame)
	case proto.TypeDelete:
		r.applyDelete(frame)
	case proto.TypeError:
		if frame.Error != nil {
			r.log.Warn().Str("code", frame.Error.Code).Str("msg", frame.Error.Msg).Msg("relay reported error")
		}
	default:
		r.log.Debug().Str("type", frame.Type).Msg("ignoring unknown frame type")
	}
}

// applyCreate handles the relay echoing a create to the whole room, the
// author included. The author recognises its own optimistic element by the
// client id and only attaches the store identity; everyone else appends.
func (r *Reconciler) applyCreate(frame proto.Frame) {
	el, err := core.DecodeElement(frame.Message)
	if err != nil {
		r.log.Warn().Err(err).Msg("discarding undecodable create payload")
		return
	}
	if el.ChatID == nil {
		el.ChatID = frame.ChatID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.elements {
		if r.elements[i].ID == el.ID {
			if r.elements[i].ChatID == nil {
				r.elements[i].ChatID = el.ChatID
				r.history.Push(r.elements)
			}
			return
		}
	}
	r.elements = append(r.elements, el)
	r.history.Push(r.elements)
}

// applyUpdate replaces the matching element wholesale, or appends when the
// element is unknown locally (e.g. its create echo was missed).
func (r *Reconciler) applyUpdate(frame proto.Frame) {
	var el core.Element
	if err := json.Unmarshal(frame.Shape, &el); err != nil {
		r.log.Warn().Err(err).Msg("discarding undecodable update payload")
		return
	}
	if el.ChatID == nil {
		el.ChatID = frame.ChatID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.replaceByID(el) {
		r.elements = append(r.elements, el)
	}
	r.history.Push(r.elements)
}

// applyDelete removes the element if present; deletes of unknown elements
// are silently ignored.
func (r *Reconciler) applyDelete(frame proto.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	if frame.ElementID != "" {
		removed = r.removeByID(frame.ElementID)
	} else if frame.ChatID != nil {
		removed = r.removeByChatID(*frame.ChatID)
	}
	if removed {
		r.history.Push(r.elements)
	}
}

// Bootstrap replaces local state wholesale from the room's persisted log.
// The fetch returns entries newest-first; they are reordered ascending by
// store identity so the collection matches replay order. History restarts
// at the bootstrapped snapshot.
func (r *Reconciler) Bootstrap(entries []LogEntry) {
	sorted := make([]LogEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	elements := make([]core.Element, 0, len(sorted))
	for _, entry := range sorted {
		el, err := core.DecodeElement(entry.Message)
		if err != nil {
			r.log.Warn().Err(err).Int64("chat_id", entry.ID).Msg("skipping undecodable log entry")
			continue
		}
		if el.ChatID == nil {
			id := entry.ID
			el.ChatID = &id
		}
		elements = append(elements, el)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = elements
	r.history.Reset()
	r.history.Push(r.elements)
}

// Undo rolls the collection back one snapshot. Reports whether anything
// changed.
func (r *Reconciler) Undo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.history.Undo()
	if !ok {
		return false
	}
	r.elements = snapshot
	return true
}

// Redo re-applies the next snapshot if one exists.
func (r *Reconciler) Redo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.history.Redo()
	if !ok {
		return false
	}
	r.elements = snapshot
	return true
}

// replaceByID and removeByID require r.mu to be held.

func (r *Reconciler) replaceByID(el core.Element) bool {
	for i := range r.elements {
		if r.elements[i].ID == el.ID {
			if el.ChatID == nil {
				el.ChatID = r.elements[i].ChatID
			}
			r.elements[i] = el
			return true
		}
	}
	return false
}

func (r *Reconciler) removeByID(id string) bool {
	for i := range r.elements {
		if r.elements[i].ID == id {
			r.elements = append(r.elements[:i], r.elements[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Reconciler) removeByChatID(chatID int64) bool {
	for i := range r.elements {
		if r.elements[i].ChatID != nil && *r.elements[i].ChatID == chatID {
			r.elements = append(r.elements[:i], r.elements[i+1:]...)
			return true
		}
	}
	return false
}
