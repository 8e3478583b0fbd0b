package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrLoad wraps every failure to produce a Predictor at startup.
var ErrLoad = errors.New("model load failed")

// Predictor maps each input text to one raw label. Implementations must be
// safe for concurrent use once constructed.
type Predictor interface {
	Classify(ctx context.Context, inputs []string) ([]Label, error)
}

// Info describes a loaded predictor for status endpoints.
type Info struct {
	Backend   string  `json:"backend"`
	Source    string  `json:"source,omitempty"`
	Labels    []Label `json:"labels,omitempty"`
	LabelKind string  `json:"label_kind"`
	Features  int     `json:"features,omitempty"`
}

// Describer is implemented by predictors that can report what they are.
type Describer interface {
	Describe() Info
}

// Backends understood by Open.
const (
	BackendFile   = "file"
	BackendClaude = "claude"
	BackendRules  = "rules"
)

// Options selects and configures a predictor backend.
type Options struct {
	Backend      string
	Path         string
	Threshold    float64
	AWSRegion    string
	BedrockModel string
}

// Open builds the configured predictor. Errors wrap ErrLoad; callers keep the
// predictor unset and keep serving.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Predictor, error) {
	switch opts.Backend {
	case "", BackendFile:
		m, err := LoadFile(opts.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("model loaded", "path", opts.Path, "labels", m.Labels(), "features", len(m.weights))
		return m, nil
	case BackendClaude:
		p, err := NewClaudePredictor(ctx, ClaudeOptions{Region: opts.AWSRegion, Model: opts.BedrockModel})
		if err != nil {
			return nil, err
		}
		logger.Info("claude predictor ready", "model", p.model)
		return p, nil
	case BackendRules:
		p := NewRulesPredictor(opts.Threshold)
		logger.Info("rules predictor ready", "indicators", len(indicators), "threshold", p.threshold)
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrLoad, opts.Backend)
	}
}
