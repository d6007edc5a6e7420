package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tecu23/chess-clock/pkg/config"
	"github.com/tecu23/chess-clock/pkg/messages"
)

func newTestApplication(t *testing.T, logger *zap.Logger, keys ...string) *application {
	t.Helper()

	cfg := &config.Config{
		Port:          "0",
		APIKeys:       keys,
		TickPeriod:    100 * time.Millisecond,
		DefaultPreset: "15 min | 5 sec",
		Sound:         true,
	}

	app, err := newApplication(cfg, logger)
	require.NoError(t, err)

	go app.Hub.Run()
	t.Cleanup(app.Shutdown)

	return app
}

func TestHealth(t *testing.T) {
	app := newTestApplication(t, zaptest.NewLogger(t), "secret")

	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Games)
	assert.Equal(t, 0, body.Connections)

	rec = httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebSocketRequiresAPIKey(t *testing.T) {
	app := newTestApplication(t, zaptest.NewLogger(t), "secret")

	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebSocketRoundTrip(t *testing.T) {
	// connection pumps may log after the test returns
	app := newTestApplication(t, zap.NewNop(), "secret")

	srv := httptest.NewServer(app.routes())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("X-Api-Key", "secret")

	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	var msg struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, messages.EventConnected, msg.Event)

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type":    messages.TypeCreateGame,
		"payload": map[string]string{"preset_name": "3 min"},
	}))
	require.NoError(t, ws.ReadJSON(&msg))
	require.Equal(t, messages.EventGameCreated, msg.Event)

	var created messages.GameCreatedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &created))
	assert.Equal(t, "3 min", created.State.Preset.Name)
	assert.Equal(t, "3:00", created.State.Player1.Display)
	assert.Len(t, app.Manager.Games(), 1)

	// closing the client unregisters it on the server
	require.Equal(t, 1, app.Hub.Connections())
	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool {
		return app.Hub.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
