package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/db"
	"github.com/veil-waf/phishdash/internal/model"
	"github.com/veil-waf/phishdash/internal/predict"
)

const maxHistoryLimit = 500

// APIHandler serves the JSON API.
type APIHandler struct {
	app *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{app: a}
}

type predictRequest struct {
	URL string `json:"url"`
}

// Predict handles POST /api/predict
func (ah *APIHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	body := http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ah.app.Predict(r.Context(), req.URL, db.SourceAPI))
}

type modelStatus struct {
	Ready     bool            `json:"ready"`
	Backend   string          `json:"backend"`
	Info      *model.Info     `json:"info,omitempty"`
	Mapping   predict.Mapping `json:"mapping"`
	LoadError string          `json:"load_error,omitempty"`
}

// GetModel handles GET /api/model
func (ah *APIHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	svc := ah.app.Service
	st := modelStatus{
		Ready:   svc.Ready(),
		Backend: ah.app.Config.ModelBackend,
		Mapping: svc.Mapping(),
	}
	if info, ok := svc.Info(); ok {
		st.Info = &info
	}
	if err := svc.LoadError(); err != nil {
		st.LoadError = err.Error()
	}
	writeJSON(w, http.StatusOK, st)
}

// GetSummary handles GET /api/dataset/summary and its sections,
// GET /api/dataset/{section}.
func (ah *APIHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s := ah.app.Summary
	if s == nil {
		msg := "dataset not loaded"
		if ah.app.DatasetErr != nil {
			msg += ": " + ah.app.DatasetErr.Error()
		}
		jsonError(w, msg, http.StatusServiceUnavailable)
		return
	}

	switch section := chi.URLParam(r, "section"); section {
	case "", "summary":
		writeJSON(w, http.StatusOK, s)
	case "labels":
		writeJSON(w, http.StatusOK, s.Labels)
	case "tlds":
		writeJSON(w, http.StatusOK, s.TLDs)
	case "keywords":
		writeJSON(w, http.StatusOK, s.Keywords)
	case "lengths":
		writeJSON(w, http.StatusOK, map[string]any{"stats": s.Lengths, "histogram": s.Histogram})
	default:
		jsonError(w, "unknown section "+strconv.Quote(section), http.StatusNotFound)
	}
}

// GetHistory handles GET /api/history?limit=N
func (ah *APIHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := ah.app.History.Recent(r.Context(), limit)
	if err != nil {
		ah.app.Logger.Error("fetch history", "err", err)
		jsonError(w, "failed to fetch history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []db.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetHistoryEntry handles GET /api/history/{id}
func (ah *APIHandler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	e, err := ah.app.History.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "prediction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to fetch prediction", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Health handles GET /healthz
func (ah *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"model":   ah.app.Service.Ready(),
		"dataset": ah.app.Summary != nil,
		"history": "ok",
	}
	code := http.StatusOK
	if err := ah.app.Ping(r.Context()); err != nil {
		status["history"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
