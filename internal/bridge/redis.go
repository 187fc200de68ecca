// Package bridge relays room events between sketchwire nodes over Redis
// pub/sub so that sessions connected to different processes still share a
// room. Each node publishes its locally originated events and injects
// everything it hears from peers.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sketchwire/sketchwire-server/internal/core"
	"github.com/sketchwire/sketchwire-server/internal/utils"
)

const channelPrefix = "sketchwire:room:"

// envelope is the cross-node wire format. Origin lets a node discard its
// own messages when they come back around.
type envelope struct {
	Origin    string          `json:"origin"`
	Kind      int             `json:"kind"`
	RoomID    int64           `json:"roomId"`
	ChatID    *int64          `json:"chatId,omitempty"`
	Payload   string          `json:"payload,omitempty"`
	Shape     json.RawMessage `json:"shape,omitempty"`
	ElementID string          `json:"elementId,omitempty"`
}

// Bridge connects a local hub to its peers through a Redis instance. It
// implements core.Publisher.
type Bridge struct {
	client *redis.Client
	hub    *core.Hub
	nodeID string
	log    zerolog.Logger
}

// New connects to Redis and verifies the connection. The hub may be nil
// for publish-only use.
func New(ctx context.Context, addr string, hub *core.Hub, logger *zerolog.Logger) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}

	return &Bridge{
		client: client,
		hub:    hub,
		nodeID: utils.NewID(),
		log:    lg,
	}, nil
}

// Publish forwards a locally originated event to peer nodes. Failures are
// logged; local fan-out has already happened and is never rolled back.
func (b *Bridge) Publish(ctx context.Context, roomID int64, event *core.Event) {
	if event.Kind == core.EventError {
		return
	}

	data, err := json.Marshal(envelope{
		Origin:    b.nodeID,
		Kind:      int(event.Kind),
		RoomID:    roomID,
		ChatID:    event.ChatID,
		Payload:   event.Payload,
		Shape:     event.Shape,
		ElementID: event.ElementID,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("failed to encode bridge envelope")
		return
	}

	channel := fmt.Sprintf("%s%d", channelPrefix, roomID)
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		b.log.Error().Err(err).Str("channel", channel).Msg("failed to publish bridge event")
	}
}

// Run subscribes to all room channels and injects peer events into the hub
// until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	b.log.Info().Str("node_id", b.nodeID).Msg("bridge subscribed")

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleMessage(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) handleMessage(ctx context.Context, msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("discarding malformed bridge envelope")
		return
	}
	if env.Origin == b.nodeID {
		return
	}
	if !strings.HasPrefix(msg.Channel, channelPrefix) {
		return
	}

	if b.hub == nil {
		return
	}
	b.hub.Inject(ctx, &core.Event{
		Kind:      core.EventKind(env.Kind),
		RoomID:    env.RoomID,
		ChatID:    env.ChatID,
		Payload:   env.Payload,
		Shape:     env.Shape,
		ElementID: env.ElementID,
	})
}

// Close releases the Redis connection.
func (b *Bridge) Close() error {
	return b.client.Close()
}
