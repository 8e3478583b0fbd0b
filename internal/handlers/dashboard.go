package handlers

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/dataset"
	"github.com/veil-waf/phishdash/internal/db"
	"github.com/veil-waf/phishdash/internal/predict"
	"github.com/veil-waf/phishdash/internal/ratelimit"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTitle       = "Phishing Website Detector"
	pageDescription = "A machine learning application used to identify a malicious website from its link. Input a link to get started!"
	maxFormBytes    = 64 << 10
)

// DashboardHandler serves the HTML page: the predict form and the dataset charts.
type DashboardHandler struct {
	app     *app.App
	limiter *ratelimit.Limiter
	tmpl    *template.Template
	logger  *slog.Logger
}

func NewDashboardHandler(a *app.App, limiter *ratelimit.Limiter) *DashboardHandler {
	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"pct": func(f float64) string { return trimFloat(f, 1) },
		"num": func(f float64) string { return trimFloat(f, 2) },
	}).ParseFS(templateFS, "templates/*.html"))
	return &DashboardHandler{app: a, limiter: limiter, tmpl: tmpl, logger: a.Logger}
}

type pageData struct {
	Title        string
	Description  string
	Submitted    bool
	Input        string
	Result       *predict.Result
	ModelReady   bool
	ModelError   string
	Mapping      predict.Mapping
	Summary      *dataset.Summary
	DatasetError string
	Charts       []chart
	Lengths      []lengthRow
	Histogram    chart
	ShowHistory  bool
	Recent       []db.Entry
}

// Index handles GET /
func (dh *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	dh.render(w, r, dh.page(r, false, "", nil))
}

// Submit handles POST / from the predict form.
func (dh *DashboardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if dh.limiter.Check(w, r, "predict") {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	input := r.PostForm.Get("url")
	res := dh.app.Predict(r.Context(), input, db.SourceWeb)
	dh.render(w, r, dh.page(r, true, input, res))
}

func (dh *DashboardHandler) page(r *http.Request, submitted bool, input string, res *predict.Result) *pageData {
	svc := dh.app.Service
	p := &pageData{
		Title:       pageTitle,
		Description: pageDescription,
		Submitted:   submitted,
		Input:       input,
		Result:      res,
		ModelReady:  svc.Ready(),
		Mapping:     svc.Mapping(),
		Summary:     dh.app.Summary,
	}
	if err := svc.LoadError(); err != nil {
		p.ModelError = err.Error()
	}
	if err := dh.app.DatasetErr; err != nil {
		p.DatasetError = err.Error()
	}
	if s := dh.app.Summary; s != nil {
		p.Charts = summaryCharts(s)
		p.Lengths = lengthRows(s)
		p.Histogram = histogramChart(s.Histogram)
	}
	// A protected history stays off the public page.
	if dh.app.Config.DashboardToken != "" {
		return p
	}
	p.ShowHistory = true
	recent, err := dh.app.History.Recent(r.Context(), 10)
	if err != nil {
		dh.logger.Warn("load recent predictions", "err", err)
	}
	p.Recent = recent
	return p
}

func (dh *DashboardHandler) render(w http.ResponseWriter, _ *http.Request, p *pageData) {
	var buf strings.Builder
	if err := dh.tmpl.ExecuteTemplate(&buf, "index.html", p); err != nil {
		dh.logger.Error("render dashboard", "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(buf.String()))
}
