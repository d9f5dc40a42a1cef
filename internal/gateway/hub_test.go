package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo/quizrush_backend/internal/bus"
)

var testSecret = []byte("test-secret")

func mintToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func registerRaw(t *testing.T, token, sessionID string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(registerPayload{Token: token, SessionID: sessionID})
	require.NoError(t, err)
	return raw
}

func TestVerifyToken(t *testing.T) {
	h := NewHub(nil, testSecret)

	token := mintToken(t, testSecret, jwt.MapClaims{
		"userId":        "user-1",
		"participantId": "part-1",
		"exp":           time.Now().Add(time.Hour).Unix(),
	})

	userID, participantID, err := h.verifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "part-1", participantID)
}

func TestVerifyTokenRejections(t *testing.T) {
	h := NewHub(nil, testSecret)

	// Wrong secret
	bad := mintToken(t, []byte("other-secret"), jwt.MapClaims{"userId": "user-1"})
	_, _, err := h.verifyToken(bad)
	assert.Error(t, err)

	// Expired
	expired := mintToken(t, testSecret, jwt.MapClaims{
		"userId": "user-1",
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})
	_, _, err = h.verifyToken(expired)
	assert.Error(t, err)

	// No user identity
	anonymous := mintToken(t, testSecret, jwt.MapClaims{"participantId": "part-1"})
	_, _, err = h.verifyToken(anonymous)
	assert.Error(t, err)

	// Not a token at all
	_, _, err = h.verifyToken("garbage")
	assert.Error(t, err)
}

func TestRegisterParticipantBindsSocket(t *testing.T) {
	h := NewHub(nil, testSecret)
	c := &Client{hub: h, send: make(chan []byte, sendBufferSize)}

	token := mintToken(t, testSecret, jwt.MapClaims{
		"userId":        "user-1",
		"participantId": "part-1",
	})
	h.registerParticipant(c, registerRaw(t, token, "sess-1"))

	assert.Equal(t, "user-1", c.userID)
	assert.Equal(t, "part-1", c.participantID)
	assert.Equal(t, "sess-1", c.sessionID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Contains(t, h.byUser["user-1"], c)
	assert.Same(t, c, h.byParticipant["part-1"])
	assert.Contains(t, h.rooms["sess-1"], c)
}

func TestReregisterDropsPreviousBindings(t *testing.T) {
	h := NewHub(nil, testSecret)
	c := &Client{hub: h, send: make(chan []byte, sendBufferSize)}

	first := mintToken(t, testSecret, jwt.MapClaims{"userId": "user-1", "participantId": "part-1"})
	h.registerParticipant(c, registerRaw(t, first, "sess-1"))

	// The same socket registers as a different participant in another session
	second := mintToken(t, testSecret, jwt.MapClaims{"userId": "user-2", "participantId": "part-2"})
	h.registerParticipant(c, registerRaw(t, second, "sess-2"))

	assert.Equal(t, "user-2", c.userID)
	assert.Equal(t, "part-2", c.participantID)
	assert.Equal(t, "sess-2", c.sessionID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.NotContains(t, h.byUser, "user-1")
	assert.NotContains(t, h.byParticipant, "part-1")
	assert.NotContains(t, h.rooms, "sess-1")
	assert.Contains(t, h.byUser["user-2"], c)
	assert.Same(t, c, h.byParticipant["part-2"])
	assert.Contains(t, h.rooms["sess-2"], c)
}

func TestReregisterSameIdentityKeepsSingleBinding(t *testing.T) {
	h := NewHub(nil, testSecret)
	c := &Client{hub: h, send: make(chan []byte, sendBufferSize)}

	token := mintToken(t, testSecret, jwt.MapClaims{"userId": "user-1", "participantId": "part-1"})
	h.registerParticipant(c, registerRaw(t, token, "sess-1"))
	h.registerParticipant(c, registerRaw(t, token, "sess-1"))

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Len(t, h.byUser["user-1"], 1)
	assert.Len(t, h.rooms["sess-1"], 1)
}

func TestRegisterParticipantRejectsBadToken(t *testing.T) {
	h := NewHub(nil, testSecret)
	c := &Client{hub: h, send: make(chan []byte, sendBufferSize)}

	bad := mintToken(t, []byte("other-secret"), jwt.MapClaims{"userId": "user-1"})
	h.registerParticipant(c, registerRaw(t, bad, "sess-1"))

	assert.Empty(t, c.userID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Empty(t, h.byUser)
	assert.Empty(t, h.byParticipant)
	assert.Empty(t, h.rooms)
}

func TestDispatchTargets(t *testing.T) {
	h := NewHub(nil, testSecret)

	bind := func(user, part, sess string) *Client {
		c := &Client{hub: h, send: make(chan []byte, sendBufferSize)}
		token := mintToken(t, testSecret, jwt.MapClaims{"userId": user, "participantId": part})
		h.registerParticipant(c, registerRaw(t, token, sess))
		return c
	}

	alice := bind("user-a", "part-a", "sess-1")
	bob := bind("user-b", "part-b", "sess-1")
	outsider := bind("user-c", "part-c", "sess-2")

	payload := json.RawMessage(`{"x":1}`)

	h.dispatch(bus.Message{Target: bus.TargetUser, IDs: []string{"user-a"}, Event: "e1", Payload: payload})
	assert.Len(t, alice.send, 1)
	assert.Len(t, bob.send, 0)

	h.dispatch(bus.Message{Target: bus.TargetParticipant, IDs: []string{"part-b"}, Event: "e2", Payload: payload})
	assert.Len(t, bob.send, 1)

	h.dispatch(bus.Message{Target: bus.TargetRoom, IDs: []string{"sess-1"}, Event: "e3", Payload: payload})
	assert.Len(t, alice.send, 2)
	assert.Len(t, bob.send, 2)
	assert.Len(t, outsider.send, 0)

	// Frames carry the event name on the wire
	var frame clientFrame
	require.NoError(t, json.Unmarshal(<-alice.send, &frame))
	assert.Equal(t, "e1", frame.Event)
}

func TestUnregisterRemovesAllBindings(t *testing.T) {
	h := NewHub(nil, testSecret)
	c := &Client{hub: h, send: make(chan []byte, sendBufferSize)}

	token := mintToken(t, testSecret, jwt.MapClaims{"userId": "user-1", "participantId": "part-1"})
	h.registerParticipant(c, registerRaw(t, token, "sess-1"))

	h.unregister(c)

	h.mu.RLock()
	assert.Empty(t, h.byUser)
	assert.Empty(t, h.byParticipant)
	assert.Empty(t, h.rooms)
	h.mu.RUnlock()

	// The send channel is closed so the write pump exits
	_, open := <-c.send
	assert.False(t, open)
}

func TestDeliverDropsWhenBufferFull(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}

	c.deliver([]byte("one"))
	c.deliver([]byte("two"))

	assert.Len(t, c.send, 1)
	assert.Equal(t, []byte("one"), <-c.send)
}
