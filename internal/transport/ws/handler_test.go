package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kenalan/internal/models"
	"kenalan/internal/service"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*httptest.Server, func(t *testing.T) *websocket.Conn) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	svc := service.NewChatService(models.CallConfig{RingTimeoutSec: 30, EndCallCooldownMs: 2000}, logger)
	srv := httptest.NewServer(NewHandler(svc, models.ServerConfig{}, logger))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func(t *testing.T) *websocket.Conn {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.CloseNow() })
		return conn
	}
	return srv, dial
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, models.Envelope{Event: event, Data: raw}))
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var env models.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	return env
}

func TestWebsocketPairAndRelay(t *testing.T) {
	_, dial := newTestSession(t)

	alice := dial(t)
	bob := dial(t)

	sendEvent(t, alice, models.EventJoin, models.Profile{Name: "Alice", Room: "r1"})
	sendEvent(t, bob, models.EventJoin, models.Profile{Name: "Bob", Room: "r1"})

	// Both sides learn their partner's profile.
	env := readEvent(t, alice)
	require.Equal(t, models.EventMatched, env.Event)
	var partner models.PartnerProfile
	require.NoError(t, json.Unmarshal(env.Data, &partner))
	assert.Equal(t, "Bob", partner.Name)

	env = readEvent(t, bob)
	require.Equal(t, models.EventMatched, env.Event)
	require.NoError(t, json.Unmarshal(env.Data, &partner))
	assert.Equal(t, "Alice", partner.Name)

	// A chat message reaches the partner; the sender gets a confirmation.
	sendEvent(t, alice, models.EventMessage, models.MessagePayload{Text: "halo"})

	env = readEvent(t, bob)
	require.Equal(t, models.EventMessage, env.Event)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "halo", msg.Text)
	assert.Equal(t, "Alice", msg.Sender)

	env = readEvent(t, alice)
	assert.Equal(t, models.EventMessageConfirmed, env.Event)
}

func TestWebsocketDisconnectNotifiesPartner(t *testing.T) {
	_, dial := newTestSession(t)

	alice := dial(t)
	bob := dial(t)

	sendEvent(t, alice, models.EventJoin, models.Profile{Name: "Alice", Room: "r1"})
	sendEvent(t, bob, models.EventJoin, models.Profile{Name: "Bob", Room: "r1"})
	readEvent(t, alice)
	readEvent(t, bob)

	require.NoError(t, alice.Close(websocket.StatusNormalClosure, ""))

	env := readEvent(t, bob)
	assert.Equal(t, models.EventPartnerLeft, env.Event)

	env = readEvent(t, bob)
	require.Equal(t, models.EventMessage, env.Event)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.True(t, msg.System)
	assert.Equal(t, "Alice telah keluar dari chat", msg.Text)
}

func TestWebsocketInvalidJoinGetsError(t *testing.T) {
	_, dial := newTestSession(t)

	conn := dial(t)
	sendEvent(t, conn, models.EventJoin, models.Profile{Name: "", Room: "r1"})

	env := readEvent(t, conn)
	assert.Equal(t, models.EventError, env.Event)
}
