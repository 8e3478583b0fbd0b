package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// FormatLinearV1 is the only artifact format LoadFile accepts.
const FormatLinearV1 = "phishdash/linear-v1"

const defaultTokenPattern = `[A-Za-z]+`

type tokenizerSpec struct {
	Pattern   string   `json:"pattern"`
	Lowercase *bool    `json:"lowercase"`
	StopWords []string `json:"stop_words"`
}

// artifact is the on-disk shape. Weights rows hold one value per label, or a
// single value for binary logistic models (positive score selects labels[1]).
type artifact struct {
	Format    string               `json:"format"`
	Labels    []Label              `json:"labels"`
	Tokenizer tokenizerSpec        `json:"tokenizer"`
	Intercept []float64            `json:"intercept"`
	Weights   map[string][]float64 `json:"weights"`
}

// LinearModel is a bag-of-tokens linear classifier: every class scores
// intercept + sum(count(token) * weight) and the highest score wins.
type LinearModel struct {
	source    string
	labels    []Label
	pattern   *regexp.Regexp
	lowercase bool
	stop      map[string]struct{}
	intercept []float64
	weights   map[string][]float64
}

// LoadFile reads and validates a JSON model artifact.
func LoadFile(path string) (*LinearModel, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrLoad)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	var a artifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrLoad, path, err)
	}
	m, err := build(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	m.source = path
	return m, nil
}

func build(a artifact) (*LinearModel, error) {
	if a.Format != FormatLinearV1 {
		return nil, fmt.Errorf("unsupported format %q", a.Format)
	}
	if len(a.Labels) < 2 {
		return nil, fmt.Errorf("need at least 2 labels, got %d", len(a.Labels))
	}
	kind := a.Labels[0].Kind()
	for i, l := range a.Labels {
		if l.IsNone() {
			return nil, fmt.Errorf("label %d is null", i)
		}
		if l.Kind() != kind {
			return nil, fmt.Errorf("labels mix %s and %s values", kind, l.Kind())
		}
		for _, prev := range a.Labels[:i] {
			if prev.Equal(l) {
				return nil, fmt.Errorf("duplicate label %s", l)
			}
		}
	}

	n := len(a.Labels)
	binary := n == 2 && len(a.Intercept) == 1
	switch {
	case binary:
		a.Intercept = []float64{0, a.Intercept[0]}
	case len(a.Intercept) != n:
		return nil, fmt.Errorf("intercept has %d values for %d labels", len(a.Intercept), n)
	}

	weights := make(map[string][]float64, len(a.Weights))
	for tok, row := range a.Weights {
		switch {
		case binary && len(row) == 1:
			row = []float64{0, row[0]}
		case len(row) != n:
			return nil, fmt.Errorf("weights for %q have %d values, want %d", tok, len(row), n)
		}
		weights[tok] = row
	}

	pat := a.Tokenizer.Pattern
	if pat == "" {
		pat = defaultTokenPattern
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("token pattern: %w", err)
	}
	lower := true
	if a.Tokenizer.Lowercase != nil {
		lower = *a.Tokenizer.Lowercase
	}
	stop := make(map[string]struct{}, len(a.Tokenizer.StopWords))
	for _, w := range a.Tokenizer.StopWords {
		if lower {
			w = strings.ToLower(w)
		}
		stop[w] = struct{}{}
	}

	return &LinearModel{
		labels:    a.Labels,
		pattern:   re,
		lowercase: lower,
		stop:      stop,
		intercept: a.Intercept,
		weights:   weights,
	}, nil
}

// Labels returns a copy of the class labels in artifact order.
func (m *LinearModel) Labels() []Label {
	out := make([]Label, len(m.labels))
	copy(out, m.labels)
	return out
}

// LabelKind is the kind shared by every label of the artifact.
func (m *LinearModel) LabelKind() Kind { return m.labels[0].Kind() }

func (m *LinearModel) Describe() Info {
	return Info{
		Backend:   BackendFile,
		Source:    m.source,
		Labels:    m.Labels(),
		LabelKind: m.LabelKind().String(),
		Features:  len(m.weights),
	}
}

// Tokens splits text the way the model was trained to.
func (m *LinearModel) Tokens(text string) []string {
	if m.lowercase {
		text = strings.ToLower(text)
	}
	raw := m.pattern.FindAllString(text, -1)
	out := raw[:0]
	for _, t := range raw {
		if _, skip := m.stop[t]; skip {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Scores returns one score per label for text.
func (m *LinearModel) Scores(text string) []float64 {
	scores := make([]float64, len(m.intercept))
	copy(scores, m.intercept)
	for _, tok := range m.Tokens(text) {
		row, ok := m.weights[tok]
		if !ok {
			continue
		}
		for i, w := range row {
			scores[i] += w
		}
	}
	return scores
}

// Classify labels every input. Ties resolve to the earliest label.
func (m *LinearModel) Classify(ctx context.Context, inputs []string) ([]Label, error) {
	out := make([]Label, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores := m.Scores(in)
		best := 0
		for i := 1; i < len(scores); i++ {
			if scores[i] > scores[best] {
				best = i
			}
		}
		out = append(out, m.labels[best])
	}
	return out, nil
}
