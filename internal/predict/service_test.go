package predict

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-waf/phishdash/internal/model"
)

type stubPredictor struct {
	labels []model.Label
	err    error
	panic  bool
	kind   model.Kind
	seen   [][]string
}

func (s *stubPredictor) Classify(_ context.Context, inputs []string) ([]model.Label, error) {
	s.seen = append(s.seen, inputs)
	if s.panic {
		panic("boom")
	}
	return s.labels, s.err
}

func (s *stubPredictor) Describe() model.Info {
	return model.Info{Backend: "stub", LabelKind: s.kind.String()}
}

func returning(l model.Label) *stubPredictor {
	return &stubPredictor{labels: []model.Label{l}, kind: l.Kind()}
}

func newTestService(p model.Predictor, m Mapping) *Service {
	return NewService(p, m, nil, slog.New(slog.DiscardHandler))
}

func TestPredictExamples(t *testing.T) {
	strMap := DefaultMapping(StringLabels)
	tests := []struct {
		name    string
		input   string
		stub    *stubPredictor
		verdict Verdict
		message string
		errIs   error
	}{
		{"malicious", "http://paypal-secure-login.badsite.tld", returning(model.String("bad")), Malicious, "This website is malicious!", nil},
		{"safe", "https://www.wikipedia.org", returning(model.String("good")), Safe, "This website is safe", nil},
		{"no prediction", "", returning(model.None), Inconclusive, "Unable to predict the status of the website.", ErrNoPrediction},
		{"empty batch", "x", &stubPredictor{}, Inconclusive, MessageInconclusive, ErrNoPrediction},
		{"unknown label", "x", returning(model.String("maybe")), Inconclusive, MessageInconclusive, ErrAmbiguousOutput},
		{"wrong kind", "x", returning(model.Int(1)), Inconclusive, MessageInconclusive, ErrAmbiguousOutput},
		{"predictor error", "x", &stubPredictor{err: errors.New("shape mismatch")}, Inconclusive, MessageInconclusive, ErrClassification},
		{"predictor panic", "x", &stubPredictor{panic: true}, Inconclusive, MessageInconclusive, ErrClassification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.stub, strMap)
			res := svc.Evaluate(context.Background(), tt.input)
			assert.Equal(t, tt.verdict, res.Verdict)
			assert.Equal(t, tt.message, res.Message)
			if tt.errIs != nil {
				assert.ErrorIs(t, res.Err, tt.errIs)
				assert.NotEmpty(t, res.Error)
			} else {
				assert.NoError(t, res.Err)
			}
			require.Len(t, tt.stub.seen, 1)
			assert.Equal(t, []string{tt.input}, tt.stub.seen[0], "input is forwarded unchanged as a single-element batch")
			assert.Equal(t, tt.verdict, svc.Predict(context.Background(), tt.input))
		})
	}
}

func TestPredictIntLabels(t *testing.T) {
	m := DefaultMapping(IntLabels)
	assert.Equal(t, Safe, newTestService(returning(model.Int(0)), m).Predict(context.Background(), "a"))
	assert.Equal(t, Malicious, newTestService(returning(model.Int(1)), m).Predict(context.Background(), "a"))
	assert.Equal(t, Inconclusive, newTestService(returning(model.Int(2)), m).Predict(context.Background(), "a"))
	assert.Equal(t, Inconclusive, newTestService(returning(model.String("good")), m).Predict(context.Background(), "a"))

	res := newTestService(returning(model.None), m).Evaluate(context.Background(), "a")
	assert.Equal(t, Inconclusive, res.Verdict, "absence is not label zero")
	assert.ErrorIs(t, res.Err, ErrNoPrediction)
}

func TestPredictWithoutModel(t *testing.T) {
	loadErr := errors.New("open model/phishing.json: no such file")
	svc := NewService(nil, DefaultMapping(StringLabels), loadErr, slog.New(slog.DiscardHandler))
	assert.False(t, svc.Ready())

	for _, in := range []string{"", "https://www.wikipedia.org", "http://paypal-secure-login.badsite.tld"} {
		res := svc.Evaluate(context.Background(), in)
		assert.Equal(t, Inconclusive, res.Verdict)
		assert.ErrorIs(t, res.Err, ErrModelNotLoaded)
		assert.ErrorIs(t, res.Err, loadErr)
		assert.Equal(t, MessageInconclusive, res.Message)
	}
}

func TestResolveMapping(t *testing.T) {
	m, err := ResolveMapping(SchemeAuto, returning(model.Int(0)), model.None, model.None)
	require.NoError(t, err)
	assert.Equal(t, IntLabels, m.Scheme)

	m, err = ResolveMapping(SchemeAuto, returning(model.String("good")), model.None, model.None)
	require.NoError(t, err)
	assert.Equal(t, StringLabels, m.Scheme)

	m, err = ResolveMapping(SchemeAuto, nil, model.None, model.None)
	require.NoError(t, err)
	assert.Equal(t, StringLabels, m.Scheme)

	m, err = ResolveMapping(IntLabels, nil, model.Int(1), model.Int(0))
	require.NoError(t, err)
	assert.True(t, m.Benign.Equal(model.Int(1)))
	assert.True(t, m.Malicious.Equal(model.Int(0)))

	_, err = ResolveMapping(StringLabels, nil, model.String("bad"), model.None)
	assert.Error(t, err)
}

func TestParseLabelScheme(t *testing.T) {
	for in, want := range map[string]LabelScheme{"": SchemeAuto, "AUTO": SchemeAuto, "string": StringLabels, "int": IntLabels} {
		got, err := ParseLabelScheme(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLabelScheme("float")
	assert.Error(t, err)
}

func TestVerdictText(t *testing.T) {
	var v Verdict
	require.NoError(t, v.UnmarshalText([]byte("Malicious")))
	assert.Equal(t, Malicious, v)
	assert.Equal(t, "warning", v.Level())
	assert.Equal(t, "success", Safe.Level())
	assert.Equal(t, "error", Inconclusive.Level())
	assert.Error(t, v.UnmarshalText([]byte("fine")))
}
