package http

import (
	"errors"

	"github.com/sketchwire/sketchwire-server/internal/core"
	"github.com/sketchwire/sketchwire-server/internal/proto"
)

// errMissingType means the frame had no type tag at all; per protocol this
// is fatal to the session rather than a recoverable request error.
var errMissingType = errors.New("frame missing type")

// frameToCommand maps an inbound wire frame onto a relay command. A non-nil
// proto.Error means the frame was well-formed but invalid and should be
// answered without tearing the session down.
func frameToCommand(frame proto.Frame) (*core.Command, *proto.Error, error) {
	switch frame.Type {
	case "":
		return nil, nil, errMissingType
	case proto.TypeJoinRoom:
		if frame.RoomID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId is required"}, nil
		}
		return &core.Command{Kind: core.CommandJoinRoom, RoomID: frame.RoomID}, nil, nil
	case proto.TypeLeaveRoom:
		if frame.RoomID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId is required"}, nil
		}
		return &core.Command{Kind: core.CommandLeaveRoom, RoomID: frame.RoomID}, nil, nil
	case proto.TypeChat:
		if frame.RoomID == 0 || frame.Message == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId and message are required"}, nil
		}
		return &core.Command{
			Kind:    core.CommandCreateElement,
			RoomID:  frame.RoomID,
			Payload: frame.Message,
		}, nil, nil
	case proto.TypeUpdateShape:
		if frame.RoomID == 0 || len(frame.Shape) == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId and shape are required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandUpdateElement,
			RoomID: frame.RoomID,
			Shape:  frame.Shape,
			ChatID: frame.ChatID,
		}, nil, nil
	case proto.TypeDelete:
		if frame.RoomID == 0 || frame.ChatID == nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId and chatId are required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandDeleteElement,
			RoomID:    frame.RoomID,
			ElementID: frame.ElementID,
			ChatID:    frame.ChatID,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

// frameFromEvent maps a relay event onto its outbound wire frame.
func frameFromEvent(event *core.Event) proto.Frame {
	switch event.Kind {
	case core.EventElementCreated:
		var chatID int64
		if event.ChatID != nil {
			chatID = *event.ChatID
		}
		return proto.ChatFrame(event.RoomID, chatID, event.Payload)
	case core.EventElementUpdated:
		return proto.ShapeUpdatedFrame(event.RoomID, event.ChatID, event.Shape)
	case core.EventElementDeleted:
		var chatID int64
		if event.ChatID != nil {
			chatID = *event.ChatID
		}
		return proto.DeleteFrame(event.RoomID, chatID, event.ElementID)
	case core.EventError:
		if event.Error == nil {
			return proto.ErrorFrame("unknown", "unknown error")
		}
		return proto.ErrorFrame(event.Error.Code, event.Error.Message)
	default:
		return proto.ErrorFrame("unknown", "unknown event")
	}
}
