package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/db"
	"github.com/veil-waf/phishdash/internal/sse"
)

const (
	maxMessageBytes = 64 << 10
	writeTimeout    = 5 * time.Second
	hydrateCount    = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Manager runs interactive prediction sessions over WebSocket. Each text
// message {"url": "..."} is answered with one result message.
type Manager struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*sync.Mutex
	app         *app.App
	logger      *slog.Logger
}

// NewManager creates a new WebSocket manager.
func NewManager(a *app.App) *Manager {
	return &Manager{
		connections: make(map[*websocket.Conn]*sync.Mutex),
		app:         a,
		logger:      a.Logger,
	}
}

type request struct {
	URL string `json:"url"`
}

// HandleWS upgrades an HTTP connection to WebSocket and serves predictions
// until the client disconnects.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	wmu := &sync.Mutex{}
	m.mu.Lock()
	m.connections[conn] = wmu
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.connections, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	m.hydrate(r, conn, wmu)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(conn, wmu, map[string]any{"type": "error", "error": "invalid JSON message"})
			continue
		}
		res := m.app.Predict(r.Context(), req.URL, db.SourceWS)
		m.send(conn, wmu, map[string]any{"type": "result", "result": res})
	}
}

// hydrate sends the model status and recent predictions, oldest first.
func (m *Manager) hydrate(r *http.Request, conn *websocket.Conn, wmu *sync.Mutex) {
	svc := m.app.Service
	status := map[string]any{
		"type":    "model",
		"ready":   svc.Ready(),
		"mapping": svc.Mapping(),
	}
	if err := svc.LoadError(); err != nil {
		status["load_error"] = err.Error()
	}
	m.send(conn, wmu, status)

	recent, err := m.app.History.Recent(r.Context(), hydrateCount)
	if err != nil {
		return
	}
	for i := len(recent) - 1; i >= 0; i-- {
		m.send(conn, wmu, map[string]any{"type": "history", "entry": recent[i]})
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (m *Manager) Broadcast(data map[string]any) {
	m.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(m.connections))
	for c, mu := range m.connections {
		conns[c] = mu
	}
	m.mu.RUnlock()

	for conn, wmu := range conns {
		if err := m.send(conn, wmu, data); err != nil {
			m.logger.Debug("websocket broadcast failed", "err", err)
			conn.Close()
		}
	}
}

// Forward relays hub prediction events to every connected client until ctx
// ends. Run it inside RunWithRecovery.
func (m *Manager) Forward(ctx context.Context) {
	ch, cancel := m.app.Hub.Subscribe(sse.TopicPredictions)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.Broadcast(map[string]any{"type": ev.Type, "entry": json.RawMessage(ev.Data)})
		}
	}
}

// Count returns the number of open connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) send(conn *websocket.Conn, wmu *sync.Mutex, data map[string]any) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}
	wmu.Lock()
	defer wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
