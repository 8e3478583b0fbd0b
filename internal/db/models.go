package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/veil-waf/phishdash/internal/predict"
)

// Sources of a prediction.
const (
	SourceWeb = "web"
	SourceAPI = "api"
	SourceWS  = "ws"
)

// Entry is one recorded prediction.
type Entry struct {
	ID             uuid.UUID       `json:"id"`
	Input          string          `json:"input"`
	RawLabel       json.RawMessage `json:"raw_label"`
	Verdict        string          `json:"verdict"`
	Error          string          `json:"error,omitempty"`
	Source         string          `json:"source"`
	ResponseTimeMs float32         `json:"response_time_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewEntry converts a prediction result into a history row.
func NewEntry(res *predict.Result, source string) *Entry {
	raw, err := json.Marshal(res.Raw)
	if err != nil {
		raw = []byte("null")
	}
	return &Entry{
		ID:             uuid.New(),
		Input:          res.Input,
		RawLabel:       raw,
		Verdict:        res.Verdict.String(),
		Error:          res.Error,
		Source:         source,
		ResponseTimeMs: float32(res.ResponseMs),
		CreatedAt:      time.Now().UTC(),
	}
}

// ParseID validates a history id. Malformed ids are reported as ErrNotFound
// so every store answers them the same way.
func ParseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return u, nil
}

// History stores past predictions for the dashboard. It is an audit trail
// only: nothing in it feeds back into predictions.
type History interface {
	Record(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}
