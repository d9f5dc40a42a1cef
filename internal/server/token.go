package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/neo/quizrush_backend/internal/database"
)

// participantTokenTTL bounds how long a minted token can register a socket
const participantTokenTTL = 12 * time.Hour

// MintParticipantToken signs the identity a client presents when binding its
// socket to a participant
func MintParticipantToken(secret []byte, userID, participantID, sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"userId":        userID,
		"participantId": participantID,
		"sessionId":     sessionID,
		"exp":           time.Now().Add(participantTokenTTL).Unix(),
		"iat":           time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign participant token: %v", err)
	}
	return signed, nil
}

// participantView is the start-endpoint projection of a participant,
// carrying the socket token for humans
type participantView struct {
	ParticipantID string `json:"participantId"`
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	IsBot         bool   `json:"isBot"`
	Token         string `json:"token,omitempty"`
}

// buildParticipantViews mints a token per human participant
func buildParticipantViews(secret []byte, sessionID string, parts []database.Participant) ([]participantView, error) {
	views := make([]participantView, 0, len(parts))
	for _, p := range parts {
		view := participantView{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			IsBot:         p.IsBot,
		}
		if !p.IsBot {
			token, err := MintParticipantToken(secret, p.UserID, p.ID, sessionID)
			if err != nil {
				return nil, err
			}
			view.Token = token
		}
		views = append(views, view)
	}
	return views, nil
}
