package predict

import (
	"errors"
	"fmt"
	"strings"

	"github.com/veil-waf/phishdash/internal/model"
)

// Verdict is the user-facing outcome of one prediction.
type Verdict int

const (
	Inconclusive Verdict = iota
	Safe
	Malicious
)

// User-facing messages, one per verdict.
const (
	MessageSafe         = "This website is safe"
	MessageMalicious    = "This website is malicious!"
	MessageInconclusive = "Unable to predict the status of the website."
)

func (v Verdict) String() string {
	switch v {
	case Safe:
		return "safe"
	case Malicious:
		return "malicious"
	default:
		return "inconclusive"
	}
}

// Message is the text shown to the user for v.
func (v Verdict) Message() string {
	switch v {
	case Safe:
		return MessageSafe
	case Malicious:
		return MessageMalicious
	default:
		return MessageInconclusive
	}
}

// Level is the alert style for v: success, warning or error.
func (v Verdict) Level() string {
	switch v {
	case Safe:
		return "success"
	case Malicious:
		return "warning"
	default:
		return "error"
	}
}

func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Verdict) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "safe":
		*v = Safe
	case "malicious":
		*v = Malicious
	case "inconclusive":
		*v = Inconclusive
	default:
		return fmt.Errorf("unknown verdict %q", b)
	}
	return nil
}

// Errors recorded on inconclusive results.
var (
	ErrModelNotLoaded  = errors.New("model not loaded")
	ErrClassification  = errors.New("classification failed")
	ErrAmbiguousOutput = errors.New("unrecognized model output")
	ErrNoPrediction    = errors.New("model returned no prediction")
)

// LabelScheme selects the benign/malicious sentinels a model emits.
type LabelScheme int

const (
	SchemeAuto LabelScheme = iota
	StringLabels
	IntLabels
)

func (s LabelScheme) String() string {
	switch s {
	case StringLabels:
		return "string"
	case IntLabels:
		return "int"
	default:
		return "auto"
	}
}

// ParseLabelScheme accepts auto, string or int (case-insensitive).
func ParseLabelScheme(s string) (LabelScheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SchemeAuto, nil
	case "string", "str", "strings":
		return StringLabels, nil
	case "int", "integer", "ints":
		return IntLabels, nil
	}
	return SchemeAuto, fmt.Errorf("unknown label scheme %q", s)
}

// Mapping holds the two sentinel labels a raw output is compared against.
type Mapping struct {
	Scheme    LabelScheme `json:"scheme"`
	Benign    model.Label `json:"benign"`
	Malicious model.Label `json:"malicious"`
}

// DefaultMapping returns the conventional sentinels: "good"/"bad" or 0/1.
// SchemeAuto falls back to string labels.
func DefaultMapping(s LabelScheme) Mapping {
	if s == IntLabels {
		return Mapping{Scheme: IntLabels, Benign: model.Int(0), Malicious: model.Int(1)}
	}
	return Mapping{Scheme: StringLabels, Benign: model.String("good"), Malicious: model.String("bad")}
}

func (s LabelScheme) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ResolveMapping settles the active sentinels at load time. SchemeAuto follows
// the predictor's declared label kind. Non-None overrides replace the scheme
// defaults.
func ResolveMapping(scheme LabelScheme, p model.Predictor, benign, malicious model.Label) (Mapping, error) {
	if scheme == SchemeAuto {
		scheme = StringLabels
		if d, ok := p.(model.Describer); ok && d.Describe().LabelKind == model.KindInt.String() {
			scheme = IntLabels
		}
	}
	m := DefaultMapping(scheme)
	if !benign.IsNone() {
		m.Benign = benign
	}
	if !malicious.IsNone() {
		m.Malicious = malicious
	}
	if m.Benign.Equal(m.Malicious) {
		return m, fmt.Errorf("benign and malicious labels are both %s", m.Benign)
	}
	return m, nil
}

// Classify maps one raw label to a verdict.
func (m Mapping) Classify(raw model.Label) (Verdict, error) {
	switch {
	case raw.IsNone():
		return Inconclusive, ErrNoPrediction
	case raw.Equal(m.Benign):
		return Safe, nil
	case raw.Equal(m.Malicious):
		return Malicious, nil
	}
	return Inconclusive, fmt.Errorf("%w: %s", ErrAmbiguousOutput, raw)
}
