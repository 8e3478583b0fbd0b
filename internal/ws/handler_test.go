package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/config"
	"github.com/veil-waf/phishdash/internal/db"
	"github.com/veil-waf/phishdash/internal/sse"
)

type message struct {
	Type   string          `json:"type"`
	Ready  bool            `json:"ready"`
	Error  string          `json:"error"`
	Entry  json.RawMessage `json:"entry"`
	Result struct {
		Verdict string `json:"verdict"`
		Message string `json:"message"`
	} `json:"result"`
}

func setup(t *testing.T) (*app.App, *Manager, *websocket.Conn) {
	t.Helper()
	cfg, err := config.FromEnv(func(string) string { return "" })
	require.NoError(t, err)
	cfg.ModelPath = filepath.Join("testdata", "model.json")
	cfg.DatasetPath = filepath.Join("testdata", "urls.csv")
	cfg.HistorySize = 10

	a, err := app.New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	a.Predict(context.Background(), "https://www.wikipedia.org", db.SourceAPI)

	m := NewManager(a)
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return a, m, conn
}

func read(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHydrateThenPredict(t *testing.T) {
	_, m, conn := setup(t)

	status := read(t, conn)
	assert.Equal(t, "model", status.Type)
	assert.True(t, status.Ready)

	hist := read(t, conn)
	assert.Equal(t, "history", hist.Type)
	assert.Contains(t, string(hist.Entry), "wikipedia")

	require.NoError(t, conn.WriteJSON(map[string]string{"url": "secure-login.example"}))
	res := read(t, conn)
	assert.Equal(t, "result", res.Type)
	assert.Equal(t, "malicious", res.Result.Verdict)
	assert.Equal(t, "This website is malicious!", res.Result.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	bad := read(t, conn)
	assert.Equal(t, "error", bad.Type)
	assert.Equal(t, "invalid JSON message", bad.Error)

	assert.Equal(t, 1, m.Count())
}

func TestForwardRelaysPredictions(t *testing.T) {
	a, m, conn := setup(t)
	read(t, conn) // model
	read(t, conn) // history

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Forward(ctx)

	// Wait for Forward to subscribe before recording.
	require.Eventually(t, func() bool {
		return a.Hub.SubscriberCount(sse.TopicPredictions) > 0
	}, time.Second, 10*time.Millisecond)

	a.Predict(context.Background(), "paypal-verify.example", db.SourceAPI)
	msg := read(t, conn)
	assert.Equal(t, "prediction", msg.Type)
	assert.Contains(t, string(msg.Entry), "paypal-verify.example")
}
