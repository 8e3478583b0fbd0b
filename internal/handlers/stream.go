package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/sse"
)

// StreamHandler serves the live prediction feed over SSE.
type StreamHandler struct {
	app       *app.App
	keepalive time.Duration
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(a *app.App) *StreamHandler {
	return &StreamHandler{app: a, keepalive: 30 * time.Second}
}

// HandleSSE handles GET /api/stream/events
// It replays recent predictions oldest first, then streams live events with
// periodic keepalives.
func (sh *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before hydrating so nothing recorded in between is lost.
	ch, cancel := sh.app.Hub.Subscribe(sse.TopicPredictions)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	recent, err := sh.app.History.Recent(r.Context(), 20)
	if err != nil {
		sh.app.Logger.Warn("load recent predictions for stream", "err", err)
	}
	for i := len(recent) - 1; i >= 0; i-- {
		data, _ := json.Marshal(recent[i])
		fmt.Fprintf(w, "event: prediction\ndata: %s\n\n", data)
	}
	if s := sh.app.Summary; s != nil {
		data, _ := json.Marshal(s.Labels)
		fmt.Fprintf(w, "event: stats\ndata: %s\n\n", data)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sh.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
