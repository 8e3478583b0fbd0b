package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/auth"
	"github.com/veil-waf/phishdash/internal/ratelimit"
)

// NewRouter wires every route. wsHandler serves /ws; nil disables it.
func NewRouter(a *app.App, limiter *ratelimit.Limiter, wsHandler http.HandlerFunc) http.Handler {
	dash := NewDashboardHandler(a, limiter)
	api := NewAPIHandler(a)
	stream := NewStreamHandler(a)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	// Health check
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	})
	r.Get("/healthz", api.Health)

	// Dashboard page and form
	r.Get("/", dash.Index)
	r.Post("/", dash.Submit)

	// The socket replays and forwards history, so it shares the history guard.
	if wsHandler != nil {
		r.With(limiter.Middleware("ws"), auth.RequireToken(a.Config.DashboardToken)).Get("/ws", wsHandler)
	}

	r.Route("/api", func(ar chi.Router) {
		ar.With(limiter.Middleware("predict")).Post("/predict", api.Predict)

		ar.Group(func(pub chi.Router) {
			pub.Use(limiter.Middleware("api"))
			pub.Get("/model", api.GetModel)
			pub.Get("/dataset/summary", api.GetSummary)
			pub.Get("/dataset/{section}", api.GetSummary)
		})

		// History is optionally protected by DASHBOARD_TOKEN.
		ar.Group(func(priv chi.Router) {
			priv.Use(auth.RequireToken(a.Config.DashboardToken))
			priv.Get("/history", api.GetHistory)
			priv.Get("/history/{id}", api.GetHistoryEntry)
			priv.Get("/stream/events", stream.HandleSSE)
		})
	})

	return r
}

// corsMiddleware allows the JSON API to be called from other origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
