package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/neo/quizrush_backend/internal/bus"
	"github.com/neo/quizrush_backend/internal/logging"
)

// Client events the gateway handles itself or forwards to the engine
const (
	eventRegisterParticipant = "game:register-participant"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced at the edge
		return true
	},
}

// registerPayload binds a socket to a participant. The token is the
// HS256-signed participant token minted when the session was started.
type registerPayload struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

// forwardedPayload is what the gateway publishes to the engine: the client
// payload plus the socket's verified identity
type forwardedPayload struct {
	SessionID     string `json:"sessionId,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	QuestionID    string `json:"questionId,omitempty"`
	OptionID      string `json:"optionId,omitempty"`
	RoomCode      string `json:"roomCode,omitempty"`
}

// Hub owns the socket bindings: userId→sockets, participantId→socket, and
// the session rooms used for broadcast fan-out. It bridges the redis event
// bus to the sockets in both directions.
type Hub struct {
	bus       *bus.Bus
	jwtSecret []byte

	mu            sync.RWMutex
	byUser        map[string]map[*Client]struct{}
	byParticipant map[string]*Client
	rooms         map[string]map[*Client]struct{}
}

// NewHub creates a gateway hub over the given bus
func NewHub(b *bus.Bus, jwtSecret []byte) *Hub {
	return &Hub{
		bus:           b,
		jwtSecret:     jwtSecret,
		byUser:        make(map[string]map[*Client]struct{}),
		byParticipant: make(map[string]*Client),
		rooms:         make(map[string]map[*Client]struct{}),
	}
}

// Run subscribes the hub to engine events until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	h.bus.SubscribeOutbound(ctx, h.dispatch)
}

// ServeWS upgrades an HTTP request into a managed socket
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error("Failed to upgrade websocket", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	go client.writePump()
	go client.readPump()
}

// dispatch translates one bus message into socket sends for its target set
func (h *Hub) dispatch(msg bus.Message) {
	frame, err := json.Marshal(clientFrame{Event: msg.Event, Payload: msg.Payload})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	switch msg.Target {
	case bus.TargetUser:
		for _, id := range msg.IDs {
			for c := range h.byUser[id] {
				c.deliver(frame)
			}
		}
	case bus.TargetParticipant:
		for _, id := range msg.IDs {
			if c, ok := h.byParticipant[id]; ok {
				c.deliver(frame)
			}
		}
	case bus.TargetRoom:
		for _, id := range msg.IDs {
			for c := range h.rooms[id] {
				c.deliver(frame)
			}
		}
	}
}

// handleClientEvent processes one inbound frame: registration binds the
// socket, everything else is forwarded to the engine with the socket's
// verified identity attached
func (h *Hub) handleClientEvent(c *Client, frame clientFrame) {
	if frame.Event == eventRegisterParticipant {
		h.registerParticipant(c, frame.Payload)
		return
	}

	if c.participantID == "" && c.userID == "" {
		logging.LogSocketEvent("unregistered_event", "", map[string]interface{}{
			"event": frame.Event,
		})
		return
	}

	var p forwardedPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		logging.LogSocketEvent("malformed_payload", c.userID, map[string]interface{}{
			"event": frame.Event,
			"error": err.Error(),
		})
		return
	}

	// The socket's bindings are authoritative over client-asserted ids
	p.UserID = c.userID
	if c.participantID != "" {
		p.ParticipantID = c.participantID
	}
	if p.SessionID == "" {
		p.SessionID = c.sessionID
	}

	if err := h.bus.PublishInbound(context.Background(), frame.Event, p); err != nil {
		logging.Error("Failed to forward client event", map[string]interface{}{
			"event": frame.Event,
			"error": err.Error(),
		})
	}
}

// registerParticipant verifies the participant token and binds the socket to
// its user, participant, and (optionally) session room. Re-registering drops
// the socket's previous bindings first, so switching identities never leaves
// stale routing entries behind.
func (h *Hub) registerParticipant(c *Client, raw json.RawMessage) {
	var p registerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	userID, participantID, err := h.verifyToken(p.Token)
	if err != nil {
		logging.LogSocketEvent("register_rejected", "", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	h.mu.Lock()
	h.unbindLocked(c)
	c.userID = userID
	c.participantID = participantID
	c.sessionID = ""
	if users, ok := h.byUser[userID]; ok {
		users[c] = struct{}{}
	} else {
		h.byUser[userID] = map[*Client]struct{}{c: {}}
	}
	if participantID != "" {
		h.byParticipant[participantID] = c
	}
	if p.SessionID != "" {
		c.sessionID = p.SessionID
		if room, ok := h.rooms[p.SessionID]; ok {
			room[c] = struct{}{}
		} else {
			h.rooms[p.SessionID] = map[*Client]struct{}{c: {}}
		}
	}
	h.mu.Unlock()

	logging.LogSocketEvent("participant_registered", userID, map[string]interface{}{
		"participant_id": participantID,
		"session_id":     p.SessionID,
	})
}

// unregister removes every binding a closed socket holds
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(c)
	close(c.send)
}

// unbindLocked removes the socket's current identity bindings. Callers hold
// h.mu.
func (h *Hub) unbindLocked(c *Client) {
	if users, ok := h.byUser[c.userID]; ok {
		delete(users, c)
		if len(users) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	if c.participantID != "" && h.byParticipant[c.participantID] == c {
		delete(h.byParticipant, c.participantID)
	}
	if room, ok := h.rooms[c.sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.sessionID)
		}
	}
}

// verifyToken validates an HS256 participant token and extracts its identity
// claims
func (h *Hub) verifyToken(tokenString string) (userID, participantID string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token claims")
	}

	userID, _ = claims["userId"].(string)
	participantID, _ = claims["participantId"].(string)
	if userID == "" {
		return "", "", fmt.Errorf("token missing user identity")
	}
	return userID, participantID, nil
}
