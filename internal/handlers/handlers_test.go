package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/config"
	"github.com/veil-waf/phishdash/internal/db"
	"github.com/veil-waf/phishdash/internal/predict"
	"github.com/veil-waf/phishdash/internal/ratelimit"
	"github.com/veil-waf/phishdash/internal/ws"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *app.App {
	t.Helper()
	cfg, err := config.FromEnv(func(string) string { return "" })
	require.NoError(t, err)
	cfg.ModelPath = filepath.Join("testdata", "model.json")
	cfg.DatasetPath = filepath.Join("testdata", "urls.csv")
	cfg.HistorySize = 20
	if mutate != nil {
		mutate(cfg)
	}
	a, err := app.New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func newTestRouter(t *testing.T, mutate func(*config.Config)) (*app.App, http.Handler) {
	a := newTestApp(t, mutate)
	return a, NewRouter(a, ratelimit.New(), nil)
}

func postForm(h http.Handler, input string) *httptest.ResponseRecorder {
	form := url.Values{"url": {input}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexRendersPage(t *testing.T) {
	_, h := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, pageTitle)
	assert.Contains(t, body, "Enter a website link here")
	assert.Contains(t, body, "Label counts")
	assert.Contains(t, body, "Top-level domains")
	assert.NotContains(t, body, "Your input is")
}

func TestSubmitShowsVerdict(t *testing.T) {
	_, h := newTestRouter(t, nil)

	tests := []struct {
		input   string
		message string
		level   string
	}{
		{"http://paypal-secure-login.badsite.tld", "This website is malicious!", "warning"},
		{"https://www.wikipedia.org", "This website is safe", "success"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rec := postForm(h, tt.input)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, "Your input is: "+tt.input)
			assert.Contains(t, body, tt.message)
			assert.Contains(t, body, `class="alert `+tt.level)
		})
	}
}

func TestSubmitWithoutModelIsInconclusive(t *testing.T) {
	_, h := newTestRouter(t, func(c *config.Config) {
		c.ModelPath = filepath.Join(t.TempDir(), "absent.json")
	})

	rec := postForm(h, "https://www.wikipedia.org")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unable to predict the status of the website.")
}

func TestAPIPredict(t *testing.T) {
	a, h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"url":"secure-login.example"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res predict.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, predict.Malicious, res.Verdict)
	assert.Equal(t, "This website is malicious!", res.Message)
	txt, ok := res.Raw.Text()
	require.True(t, ok)
	assert.Equal(t, "bad", txt)

	recent, err := a.History.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, db.SourceAPI, recent[0].Source)
}

func TestAPIPredictBadJSON(t *testing.T) {
	_, h := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"url":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIModel(t *testing.T) {
	_, h := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st struct {
		Ready   bool `json:"ready"`
		Mapping struct {
			Scheme    string `json:"scheme"`
			Benign    string `json:"benign"`
			Malicious string `json:"malicious"`
		} `json:"mapping"`
		Info struct {
			LabelKind string `json:"label_kind"`
		} `json:"info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Ready)
	assert.Equal(t, "good", st.Mapping.Benign)
	assert.Equal(t, "bad", st.Mapping.Malicious)
	assert.Equal(t, "string", st.Info.LabelKind)
}

func TestAPIDatasetSections(t *testing.T) {
	_, h := newTestRouter(t, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/api/dataset/summary", http.StatusOK},
		{"/api/dataset/labels", http.StatusOK},
		{"/api/dataset/tlds", http.StatusOK},
		{"/api/dataset/keywords", http.StatusOK},
		{"/api/dataset/lengths", http.StatusOK},
		{"/api/dataset/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dataset/labels", nil))
	var labels struct {
		Good int `json:"good"`
		Bad  int `json:"bad"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &labels))
	assert.Equal(t, 2, labels.Good)
	assert.Equal(t, 2, labels.Bad)
}

func TestAPIDatasetUnavailable(t *testing.T) {
	_, h := newTestRouter(t, func(c *config.Config) {
		c.DatasetPath = filepath.Join(t.TempDir(), "none.csv")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dataset/summary", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dataset not loaded")

	// The page still renders without charts.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Top-level domains")
}

func TestHistory(t *testing.T) {
	_, h := newTestRouter(t, nil)
	postForm(h, "https://www.wikipedia.org")
	postForm(h, "secure-login.example")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []db.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "secure-login.example", entries[0].Input)
	assert.Equal(t, db.SourceWeb, entries[0].Source)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/"+entries[0].ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var e db.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, entries[0].ID, e.ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/00000000-0000-0000-0000-000000000000", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRequiresToken(t *testing.T) {
	_, h := newTestRouter(t, func(c *config.Config) { c.DashboardToken = "s3cret" })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The public page leaves the feed out.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, rec.Body.String(), "Recent predictions")
}

func TestPredictRateLimited(t *testing.T) {
	_, h := newTestRouter(t, nil)

	limit := ratelimit.DefaultBuckets["predict"].MaxRequests
	for i := 0; i < limit; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"url":"a"}`)))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"url":"a"}`)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealth(t *testing.T) {
	_, h := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"model":true,"dataset":true,"history":"ok"}`, rec.Body.String())
}

func TestStreamReplaysAndFollows(t *testing.T) {
	a, h := newTestRouter(t, nil)
	a.Predict(context.Background(), "https://www.wikipedia.org", db.SourceAPI)

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	next := func() (string, string) {
		var event, data string
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				if event != "" {
					return event, data
				}
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
		return "", ""
	}

	event, data := next()
	assert.Equal(t, "prediction", event)
	assert.Contains(t, data, "wikipedia")

	event, _ = next()
	assert.Equal(t, "stats", event)

	a.Predict(context.Background(), "secure-login.example", db.SourceAPI)
	event, data = next()
	assert.Equal(t, "prediction", event)
	assert.Contains(t, data, "secure-login.example")
}

func TestWebSocketRequiresToken(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.DashboardToken = "s3cret" })
	a.Predict(context.Background(), "https://private.example/secret-path", db.SourceAPI)
	srv := httptest.NewServer(NewRouter(a, ratelimit.New(), ws.NewManager(a).HandleWS))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=s3cret", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var status map[string]any
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "model", status["type"])
}

type failingHistory struct{ db.History }

func (failingHistory) Recent(context.Context, int) ([]db.Entry, error) {
	return nil, errors.New("history offline")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamLogsHistoryFailure(t *testing.T) {
	a := newTestApp(t, nil)
	logs := &syncBuffer{}
	a.Logger = slog.New(slog.NewJSONHandler(logs, nil))
	a.History = failingHistory{a.History}

	srv := httptest.NewServer(NewRouter(a, ratelimit.New(), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The stream still opens with the stats event.
	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "event: stats", sc.Text())

	assert.Contains(t, logs.String(), "load recent predictions for stream")
	assert.Contains(t, logs.String(), "history offline")
}
