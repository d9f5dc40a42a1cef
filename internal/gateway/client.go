package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neo/quizrush_backend/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// Per-socket outbound buffer. A client that cannot drain it loses
	// messages rather than stalling the fan-out.
	sendBufferSize = 64
)

// clientFrame is the wire format in both directions on a socket
type clientFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one connected socket and its identity bindings
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID        string
	participantID string
	sessionID     string
}

// readPump consumes frames from the socket and hands them to the hub until
// the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.LogSocketEvent("read_error", c.userID, map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logging.LogSocketEvent("malformed_frame", c.userID, map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		c.hub.handleClientEvent(c, frame)
	}
}

// writePump drains the send buffer onto the socket and keeps the connection
// alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver enqueues a frame for the socket, dropping it when the buffer is
// full so slow clients never block the hub
func (c *Client) deliver(raw []byte) {
	select {
	case c.send <- raw:
	default:
		logging.LogSocketEvent("frame_dropped", c.userID, map[string]interface{}{
			"participant_id": c.participantID,
		})
	}
}
