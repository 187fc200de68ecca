package client

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sketchwire/sketchwire-server/internal/core"
	"github.com/sketchwire/sketchwire-server/internal/proto"
)

// recordingSender captures frames instead of sending them.
type recordingSender struct {
	frames []proto.Frame
}

func (s *recordingSender) Send(_ context.Context, frame proto.Frame) error {
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSender) last(t *testing.T) proto.Frame {
	t.Helper()
	if len(s.frames) == 0 {
		t.Fatal("no frames sent")
	}
	return s.frames[len(s.frames)-1]
}

func i64(v int64) *int64 { return &v }

func TestReconcilerCreateEmitsFrameAndAppliesOptimistically(t *testing.T) {
	sender := &recordingSender{}
	rec := NewReconciler(7, sender, nil)

	if err := rec.CreateElement(context.Background(), core.Element{ID: "el-1", Kind: core.KindRectangle}); err != nil {
		t.Fatalf("create: %v", err)
	}

	elements := rec.Elements()
	if len(elements) != 1 || elements[0].ID != "el-1" {
		t.Fatalf("optimistic apply missing: %+v", elements)
	}
	if elements[0].ChatID != nil {
		t.Fatal("store identity must be absent until the echo arrives")
	}

	frame := sender.last(t)
	if frame.Type != proto.TypeChat || frame.RoomID != 7 || frame.Message == "" {
		t.Fatalf("unexpected create frame: %+v", frame)
	}
}

func TestReconcilerEchoAttachesIdentityWithoutDuplicating(t *testing.T) {
	sender := &recordingSender{}
	rec := NewReconciler(7, sender, nil)

	if err := rec.CreateElement(context.Background(), core.Element{ID: "el-1", Kind: core.KindRectangle}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// The relay echoes the create back to the author with the assigned id.
	rec.HandleFrame(proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  7,
		ChatID:  i64(41),
		Message: `{"id":"el-1","type":"rectangle","chatId":41}`,
	})

	elements := rec.Elements()
	if len(elements) != 1 {
		t.Fatalf("echo duplicated the element: %+v", elements)
	}
	if elements[0].ChatID == nil || *elements[0].ChatID != 41 {
		t.Fatalf("echo did not attach identity: %+v", elements[0])
	}
}

func TestReconcilerPeerCreateAppends(t *testing.T) {
	rec := NewReconciler(7, nil, nil)

	rec.HandleFrame(proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  7,
		ChatID:  i64(1),
		Message: `{"id":"peer-el","type":"ellipse","chatId":1}`,
	})

	elements := rec.Elements()
	if len(elements) != 1 || elements[0].ID != "peer-el" {
		t.Fatalf("peer create not applied: %+v", elements)
	}
}

func TestReconcilerIgnoresOtherRooms(t *testing.T) {
	rec := NewReconciler(7, nil, nil)

	rec.HandleFrame(proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  9,
		ChatID:  i64(1),
		Message: `{"id":"other","type":"pen"}`,
	})

	if len(rec.Elements()) != 0 {
		t.Fatal("frame for another room must be ignored")
	}
}

func TestReconcilerUpdateReplacesElseAppends(t *testing.T) {
	rec := NewReconciler(7, nil, nil)

	rec.HandleFrame(proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  7,
		ChatID:  i64(1),
		Message: `{"id":"el-1","type":"rectangle","x":10}`,
	})
	rec.HandleFrame(proto.Frame{
		Type:   proto.TypeShapeUpdated,
		RoomID: 7,
		ChatID: i64(1),
		Shape:  json.RawMessage(`{"id":"el-1","type":"rectangle","x":20,"chatId":1}`),
	})

	elements := rec.Elements()
	if len(elements) != 1 {
		t.Fatalf("update must replace in place: %+v", elements)
	}
	if elements[0].X == nil || *elements[0].X != 20 {
		t.Fatalf("update not applied: %+v", elements[0])
	}

	// An update for an element never seen locally is appended.
	rec.HandleFrame(proto.Frame{
		Type:   proto.TypeShapeUpdated,
		RoomID: 7,
		ChatID: i64(2),
		Shape:  json.RawMessage(`{"id":"el-missed","type":"arrow","chatId":2}`),
	})
	if len(rec.Elements()) != 2 {
		t.Fatalf("unknown update must append: %+v", rec.Elements())
	}
}

func TestReconcilerDeleteRemovesIfPresent(t *testing.T) {
	rec := NewReconciler(7, nil, nil)

	rec.HandleFrame(proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  7,
		ChatID:  i64(1),
		Message: `{"id":"el-1","type":"line","chatId":1}`,
	})

	rec.HandleFrame(proto.Frame{Type: proto.TypeDelete, RoomID: 7, ChatID: i64(1), ElementID: "el-1"})
	if len(rec.Elements()) != 0 {
		t.Fatalf("delete not applied: %+v", rec.Elements())
	}

	// Deleting something unknown is a no-op.
	rec.HandleFrame(proto.Frame{Type: proto.TypeDelete, RoomID: 7, ChatID: i64(99), ElementID: "ghost"})
	if len(rec.Elements()) != 0 {
		t.Fatal("delete of unknown element must be a no-op")
	}
}

func TestReconcilerBootstrapReplacesStateAscending(t *testing.T) {
	rec := NewReconciler(7, nil, nil)

	if err := rec.CreateElement(context.Background(), core.Element{ID: "stale", Kind: core.KindPen}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// The fetch returns newest-first; bootstrap must flip to replay order.
	rec.Bootstrap([]LogEntry{
		{ID: 3, RoomID: 7, Message: `{"id":"c","type":"text"}`},
		{ID: 1, RoomID: 7, Message: `{"id":"a","type":"pen"}`},
		{ID: 2, RoomID: 7, Message: `{"id":"b","type":"line"}`},
	})

	elements := rec.Elements()
	if len(elements) != 3 {
		t.Fatalf("bootstrap must replace wholesale: %+v", elements)
	}
	for i, want := range []string{"a", "b", "c"} {
		if elements[i].ID != want {
			t.Fatalf("order[%d] = %q, want %q", i, elements[i].ID, want)
		}
	}
	if elements[0].ChatID == nil || *elements[0].ChatID != 1 {
		t.Fatalf("bootstrap must attach store identities: %+v", elements[0])
	}

	// History restarts at the bootstrapped snapshot.
	if rec.Undo() {
		t.Fatal("undo past the bootstrap baseline must be a no-op")
	}
}

func TestReconcilerUndoRedoAppliesSnapshots(t *testing.T) {
	rec := NewReconciler(7, nil, nil)
	ctx := context.Background()

	if err := rec.CreateElement(ctx, core.Element{ID: "el-1", Kind: core.KindRectangle}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rec.CreateElement(ctx, core.Element{ID: "el-2", Kind: core.KindEllipse}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !rec.Undo() {
		t.Fatal("undo failed")
	}
	if got := rec.Elements(); len(got) != 1 || got[0].ID != "el-1" {
		t.Fatalf("undo state: %+v", got)
	}

	if !rec.Redo() {
		t.Fatal("redo failed")
	}
	if got := rec.Elements(); len(got) != 2 {
		t.Fatalf("redo state: %+v", got)
	}
}

func TestReconcilerLocalDeleteEmitsFrame(t *testing.T) {
	sender := &recordingSender{}
	rec := NewReconciler(7, sender, nil)

	el := core.Element{ID: "el-1", Kind: core.KindArrow, ChatID: i64(5)}
	rec.HandleFrame(proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  7,
		ChatID:  i64(5),
		Message: `{"id":"el-1","type":"arrow","chatId":5}`,
	})

	if err := rec.DeleteElement(context.Background(), el); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(rec.Elements()) != 0 {
		t.Fatal("local delete not applied")
	}

	frame := sender.last(t)
	if frame.Type != proto.TypeDelete || frame.ElementID != "el-1" || frame.ChatID == nil || *frame.ChatID != 5 {
		t.Fatalf("unexpected delete frame: %+v", frame)
	}
}

func TestReconcilerUpdateScrubsSelectionOnWire(t *testing.T) {
	sender := &recordingSender{}
	rec := NewReconciler(7, sender, nil)

	rec.HandleFrame(proto.Frame{
		Type:    proto.TypeChat,
		RoomID:  7,
		ChatID:  i64(3),
		Message: `{"id":"el-1","type":"rectangle","chatId":3}`,
	})

	el := core.Element{ID: "el-1", Kind: core.KindRectangle, Selected: true, ChatID: i64(3)}
	if err := rec.UpdateElement(context.Background(), el); err != nil {
		t.Fatalf("update: %v", err)
	}

	frame := sender.last(t)
	var wire core.Element
	if err := json.Unmarshal(frame.Shape, &wire); err != nil {
		t.Fatalf("decode wire shape: %v", err)
	}
	if wire.Selected {
		t.Fatal("selection flag must not go on the wire")
	}
}
