package predict

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veil-waf/phishdash/internal/model"
)

// Result is the outcome of one prediction. Err is set only for Inconclusive.
type Result struct {
	Input      string        `json:"input"`
	Verdict    Verdict       `json:"verdict"`
	Message    string        `json:"message"`
	Level      string        `json:"level"`
	Raw        model.Label   `json:"raw_label"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"-"`
	ResponseMs float64       `json:"response_time_ms"`
}

// Service turns free text into a verdict using a predictor loaded at startup.
// A nil predictor means the model failed to load.
type Service struct {
	predictor model.Predictor
	mapping   Mapping
	loadErr   error
	logger    *slog.Logger
}

// NewService wires a predictor and its sentinel mapping. loadErr is the reason
// predictor is nil, if any.
func NewService(p model.Predictor, mapping Mapping, loadErr error, logger *slog.Logger) *Service {
	return &Service{predictor: p, mapping: mapping, loadErr: loadErr, logger: logger}
}

// Ready reports whether a predictor is available.
func (s *Service) Ready() bool { return s.predictor != nil }

// LoadError is the startup failure that left the predictor unset.
func (s *Service) LoadError() error { return s.loadErr }

// Mapping returns the active sentinels.
func (s *Service) Mapping() Mapping { return s.mapping }

// Info describes the predictor, when it can describe itself.
func (s *Service) Info() (model.Info, bool) {
	d, ok := s.predictor.(model.Describer)
	if !ok {
		return model.Info{}, false
	}
	return d.Describe(), true
}

// Predict returns the verdict for text. It never fails; every error path is
// Inconclusive.
func (s *Service) Predict(ctx context.Context, text string) Verdict {
	return s.Evaluate(ctx, text).Verdict
}

// Evaluate runs one prediction and keeps the raw label and failure reason.
func (s *Service) Evaluate(ctx context.Context, text string) *Result {
	start := time.Now()
	res := &Result{Input: text}

	raw, err := s.classify(ctx, text)
	res.Raw = raw
	if err == nil {
		res.Verdict, err = s.mapping.Classify(raw)
	}
	if err != nil {
		res.Verdict = Inconclusive
		res.Err = err
		res.Error = err.Error()
	}
	res.Message = res.Verdict.Message()
	res.Level = res.Verdict.Level()
	res.Elapsed = time.Since(start)
	res.ResponseMs = float64(res.Elapsed.Microseconds()) / 1000.0

	s.logger.Info("prediction",
		"raw", raw.String(),
		"verdict", res.Verdict.String(),
		"err", err,
		"ms", res.ResponseMs,
	)
	return res
}

// classify calls the predictor with a one-element batch and returns its first
// label. Errors and panics become ErrClassification.
func (s *Service) classify(ctx context.Context, text string) (raw model.Label, err error) {
	if s.predictor == nil {
		if s.loadErr != nil {
			return model.None, fmt.Errorf("%w: %w", ErrModelNotLoaded, s.loadErr)
		}
		return model.None, ErrModelNotLoaded
	}

	defer func() {
		if r := recover(); r != nil {
			raw = model.None
			err = fmt.Errorf("%w: panic: %v", ErrClassification, r)
		}
	}()

	labels, err := s.predictor.Classify(ctx, []string{text})
	if err != nil {
		return model.None, fmt.Errorf("%w: %w", ErrClassification, err)
	}
	if len(labels) == 0 {
		return model.None, ErrNoPrediction
	}
	return labels[0], nil
}
