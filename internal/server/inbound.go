package server

import (
	"context"
	"encoding/json"

	"github.com/neo/quizrush_backend/internal/bus"
	"github.com/neo/quizrush_backend/internal/logging"
)

// Lobby control events arriving over the socket
const (
	inboundLobbyLeave             = "lobby:leave"
	inboundLobbyInitiateCountdown = "lobby:initiate_countdown"
	inboundLobbyCancelCountdown   = "lobby:cancel_countdown"
)

type lobbyEventPayload struct {
	UserID   string `json:"userId"`
	RoomCode string `json:"roomCode"`
}

// routeInbound splits gateway-forwarded client events between the lobby
// controller and the game engine. Errors from lobby operations triggered
// over the socket are logged, not surfaced; the room sees the resulting
// state through lobby events.
func (s *Server) routeInbound(ctx context.Context, msg bus.InboundMessage) {
	switch msg.Event {
	case inboundLobbyLeave, inboundLobbyInitiateCountdown, inboundLobbyCancelCountdown:
		var p lobbyEventPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			logging.Error("Dropping malformed lobby event", map[string]interface{}{
				"event": msg.Event,
				"error": err.Error(),
			})
			return
		}

		var err error
		switch msg.Event {
		case inboundLobbyLeave:
			err = s.lobby.Leave(ctx, p.UserID, p.RoomCode)
		case inboundLobbyInitiateCountdown:
			err = s.lobby.InitiateCountdown(ctx, p.UserID, p.RoomCode)
		case inboundLobbyCancelCountdown:
			err = s.lobby.CancelCountdown(ctx, p.UserID, p.RoomCode)
		}
		if err != nil {
			logging.Warn("Lobby event rejected", map[string]interface{}{
				"event":     msg.Event,
				"room_code": p.RoomCode,
				"user_id":   p.UserID,
				"error":     err.Error(),
			})
		}
	default:
		s.engine.HandleInbound(ctx, msg)
	}
}
