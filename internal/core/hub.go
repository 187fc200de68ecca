package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sketchwire/sketchwire-server/internal/store"
)

// persistTimeout bounds every store call made on behalf of a session.
const persistTimeout = 5 * time.Second

// Publisher receives every locally originated room event, e.g. to forward it
// to peer relay nodes. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, roomID int64, event *Event)
}

type sessionCommand struct {
	session *Session
	cmd     *Command
}

// Hub is the event relay. A single goroutine owns the room registry and all
// session membership state, so joins, leaves and fan-out never race. Commands
// from one session are handled in arrival order; commands from different
// sessions interleave at the hub's single inbox.
type Hub struct {
	shapes store.ShapeStore
	log    zerolog.Logger

	register   chan *Session
	unregister chan *Session
	commands   chan sessionCommand
	inject     chan *Event

	rooms    map[int64]*Room
	sessions map[*Session]struct{}

	publisher Publisher
}

// NewHub creates a relay backed by the given shape store. A nil logger
// disables hub logging.
func NewHub(shapes store.ShapeStore, logger *zerolog.Logger) *Hub {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Hub{
		shapes:     shapes,
		log:        lg,
		register:   make(chan *Session),
		unregister: make(chan *Session),
		commands:   make(chan sessionCommand, 64),
		inject:     make(chan *Event, 64),
		rooms:      make(map[int64]*Room),
		sessions:   make(map[*Session]struct{}),
	}
}

// SetPublisher installs the cross-node event publisher. Must be called
// before Run.
func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

// RegisterSession hands a freshly authenticated session to the hub.
func (h *Hub) RegisterSession(s *Session) {
	h.register <- s
}

// UnregisterSession drops a session and all its room memberships. No
// departure is broadcast; peers simply stop receiving its traffic.
func (h *Hub) UnregisterSession(s *Session) {
	h.unregister <- s
}

// Inject delivers an event that originated on another relay node. It is
// fanned out to local room members only, never re-persisted or re-published.
func (h *Hub) Inject(ctx context.Context, event *Event) {
	select {
	case h.inject <- event:
	case <-ctx.Done():
	}
}

// Run processes hub traffic until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case s := <-h.register:
			h.sessions[s] = struct{}{}
			go h.forward(ctx, s)
		case s := <-h.unregister:
			h.dropSession(s)
		case sc := <-h.commands:
			h.handle(ctx, sc.session, sc.cmd)
		case ev := <-h.inject:
			h.fanOut(ctx, ev.RoomID, ev, false)
		case <-ctx.Done():
			return
		}
	}
}

// forward moves one session's commands into the hub inbox, preserving the
// session's own ordering.
func (h *Hub) forward(ctx context.Context, s *Session) {
	for {
		select {
		case cmd, ok := <-s.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- sessionCommand{session: s, cmd: cmd}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) dropSession(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	for roomID := range s.Rooms {
		if room, ok := h.rooms[roomID]; ok {
			room.RemoveSession(s)
			if room.Empty() {
				delete(h.rooms, roomID)
			}
		}
	}
	close(s.Events)
	h.log.Debug().Str("session_id", s.ID).Msg("session dropped")
}

func (h *Hub) handle(ctx context.Context, s *Session, cmd *Command) {
	// The session may have disconnected while the command sat in the inbox.
	if _, ok := h.sessions[s]; !ok {
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(s, cmd.RoomID)
	case CommandLeaveRoom:
		h.handleLeave(s, cmd.RoomID)
	case CommandCreateElement:
		h.handleCreate(ctx, s, cmd)
	case CommandUpdateElement:
		h.handleUpdate(ctx, s, cmd)
	case CommandDeleteElement:
		h.handleDelete(ctx, s, cmd)
	default:
		h.sendError(s, ErrCodeBadRequest, "unknown command")
	}
}

// handleJoin is idempotent: joining a room twice is a no-op. There is no
// membership cap.
func (h *Hub) handleJoin(s *Session, roomID int64) {
	room, ok := h.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}
	if room.AddSession(s) {
		s.Rooms[roomID] = struct{}{}
		h.log.Debug().Str("session_id", s.ID).Int64("room_id", roomID).Msg("session joined room")
	}
}

// handleLeave is idempotent: leaving an absent room is a no-op.
func (h *Hub) handleLeave(s *Session, roomID int64) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	room.RemoveSession(s)
	delete(s.Rooms, roomID)
	if room.Empty() {
		delete(h.rooms, roomID)
	}
}

// handleCreate treats the store write as a precondition for identity
// assignment: if persistence fails no broadcast occurs and the sender is
// told the create failed.
func (h *Hub) handleCreate(ctx context.Context, s *Session, cmd *Command) {
	if h.shapes == nil {
		h.sendError(s, ErrCodePersistFailed, "no shape store configured")
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	chatID, err := h.shapes.AppendShape(storeCtx, cmd.RoomID, s.UserID, cmd.Payload)
	cancel()
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", cmd.RoomID).Msg("failed to persist element")
		h.sendError(s, ErrCodePersistFailed, "failed to persist element")
		return
	}

	event := &Event{
		Kind:    EventElementCreated,
		RoomID:  cmd.RoomID,
		ChatID:  &chatID,
		Payload: AttachChatID(cmd.Payload, chatID),
	}
	h.fanOut(ctx, cmd.RoomID, event, true)
}

// handleUpdate fans the update out immediately and persists it in the
// background. Delivery to peers is deliberately not gated on durability;
// a failed upsert is logged and never rolls the broadcast back.
func (h *Hub) handleUpdate(ctx context.Context, s *Session, cmd *Command) {
	if len(cmd.Shape) == 0 {
		h.sendError(s, ErrCodeBadRequest, "shape is required")
		return
	}

	shape := ScrubSelected(cmd.Shape)
	event := &Event{
		Kind:   EventElementUpdated,
		RoomID: cmd.RoomID,
		ChatID: cmd.ChatID,
		Shape:  shape,
	}
	h.fanOut(ctx, cmd.RoomID, event, true)

	if h.shapes == nil {
		return
	}
	go h.persistUpdate(cmd.ChatID, cmd.RoomID, s.UserID, string(shape))
}

func (h *Hub) persistUpdate(chatID *int64, roomID, userID int64, payload string) {
	// Detached from the session context: persistence outlives a disconnect.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := h.shapes.UpsertShape(ctx, chatID, roomID, userID, payload); err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to persist element update")
	}
}

// handleDelete gates the broadcast on the store outcome: a delete that did
// not remove anything is not announced.
func (h *Hub) handleDelete(ctx context.Context, s *Session, cmd *Command) {
	if cmd.ChatID == nil {
		h.sendError(s, ErrCodeBadRequest, "chatId is required")
		return
	}
	if h.shapes == nil {
		h.sendError(s, ErrCodePersistFailed, "no shape store configured")
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	err := h.shapes.DeleteShape(storeCtx, *cmd.ChatID)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.log.Debug().Int64("chat_id", *cmd.ChatID).Msg("delete of unknown element ignored")
		} else {
			h.log.Error().Err(err).Int64("chat_id", *cmd.ChatID).Msg("failed to delete element")
		}
		return
	}

	event := &Event{
		Kind:      EventElementDeleted,
		RoomID:    cmd.RoomID,
		ChatID:    cmd.ChatID,
		ElementID: cmd.ElementID,
	}
	h.fanOut(ctx, cmd.RoomID, event, true)
}

// fanOut delivers an event to every local member of the room. Only sessions
// whose membership set contains the room receive it; a slow consumer is
// skipped rather than allowed to block its peers.
func (h *Hub) fanOut(ctx context.Context, roomID int64, event *Event, publish bool) {
	if room, ok := h.rooms[roomID]; ok {
		if dropped := room.Broadcast(event); dropped > 0 {
			h.log.Warn().Int64("room_id", roomID).Int("dropped", dropped).Msg("slow consumers skipped during fan-out")
		}
	}
	if publish && h.publisher != nil {
		h.publisher.Publish(ctx, roomID, event)
	}
}

func (h *Hub) sendError(s *Session, code, msg string) {
	event := &Event{Kind: EventError, Error: coreError(code, msg)}
	select {
	case s.Events <- event:
	default:
	}
}
