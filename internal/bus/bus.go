package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/neo/quizrush_backend/internal/logging"
)

// Channels between the engine and the socket gateway
const (
	ChannelGateway = "quizrush:gateway" // engine → gateway fan-out
	ChannelEngine  = "quizrush:engine"  // gateway → engine client events
)

// Target selects which socket bindings the gateway resolves ids against
type Target string

const (
	TargetUser        Target = "user"
	TargetParticipant Target = "participant"
	TargetRoom        Target = "room"
)

// Message is the single wire format for engine → gateway publishes
type Message struct {
	Target  Target          `json:"target"`
	IDs     []string        `json:"ids"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// InboundMessage is a client event forwarded by the gateway to the engine
type InboundMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Bus publishes game events through redis pub/sub. Publishing never blocks
// on slow clients; per-socket buffering and drop policy belong to the
// gateway.
type Bus struct {
	rdb *redis.Client
}

// New creates an event bus over the given redis client
func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func (b *Bus) emit(ctx context.Context, target Target, ids []string, event string, payload interface{}) error {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %v", err)
	}

	msg := Message{
		Target:  target,
		IDs:     ids,
		Event:   event,
		Payload: rawPayload,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode bus message: %v", err)
	}

	if err := b.rdb.Publish(ctx, ChannelGateway, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %v", event, err)
	}
	return nil
}

// EmitToUsers delivers an event to the sockets bound to the given user ids
func (b *Bus) EmitToUsers(ctx context.Context, userIDs []string, event string, payload interface{}) error {
	return b.emit(ctx, TargetUser, userIDs, event, payload)
}

// EmitToParticipants delivers an event to the sockets bound to the given
// participant ids
func (b *Bus) EmitToParticipants(ctx context.Context, participantIDs []string, event string, payload interface{}) error {
	return b.emit(ctx, TargetParticipant, participantIDs, event, payload)
}

// EmitToRoom broadcasts an event to every socket joined to the session room
func (b *Bus) EmitToRoom(ctx context.Context, sessionID string, event string, payload interface{}) error {
	return b.emit(ctx, TargetRoom, []string{sessionID}, event, payload)
}

// PublishInbound forwards a client event to the engine (gateway side)
func (b *Bus) PublishInbound(ctx context.Context, event string, payload interface{}) error {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode inbound payload: %v", err)
	}

	raw, err := json.Marshal(InboundMessage{Event: event, Payload: rawPayload})
	if err != nil {
		return fmt.Errorf("failed to encode inbound message: %v", err)
	}

	if err := b.rdb.Publish(ctx, ChannelEngine, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish inbound %s: %v", event, err)
	}
	return nil
}

// SubscribeOutbound delivers every engine → gateway message to handler until
// ctx is cancelled (gateway side)
func (b *Bus) SubscribeOutbound(ctx context.Context, handler func(Message)) {
	sub := b.rdb.Subscribe(ctx, ChannelGateway)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					logging.Error("Dropping malformed gateway message", map[string]interface{}{
						"error": err.Error(),
					})
					continue
				}
				handler(m)
			}
		}
	}()
}

// SubscribeInbound delivers every gateway → engine client event to handler
// until ctx is cancelled (engine side)
func (b *Bus) SubscribeInbound(ctx context.Context, handler func(InboundMessage)) {
	sub := b.rdb.Subscribe(ctx, ChannelEngine)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m InboundMessage
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					logging.Error("Dropping malformed engine message", map[string]interface{}{
						"error": err.Error(),
					})
					continue
				}
				handler(m)
			}
		}
	}()
}
