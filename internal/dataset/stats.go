package dataset

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/veil-waf/phishdash/internal/netguard"
)

// DefaultKeywords are the lure words counted when none are configured.
var DefaultKeywords = []string{
	"login", "signin", "secure", "account", "update", "verify", "bank",
	"paypal", "ebay", "confirm", "password", "webscr", "free", "bonus",
}

// Options tunes Summarize.
type Options struct {
	TopN          int
	Keywords      []string
	HistogramBins int
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = 10
	}
	if len(o.Keywords) == 0 {
		o.Keywords = DefaultKeywords
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = 20
	}
	return o
}

// LabelCounts counts rows per label. Labels other than good/bad land in Other.
type LabelCounts struct {
	Good  int `json:"good"`
	Bad   int `json:"bad"`
	Other int `json:"other"`
	Total int `json:"total"`
}

// Frequency is one row of a grouped count, split by label.
type Frequency struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
	Good  int    `json:"good"`
	Bad   int    `json:"bad"`
}

// LengthStats describes URL lengths (in bytes) for one group of rows.
type LengthStats struct {
	Count  int     `json:"count"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
}

// Bucket is one histogram bin covering lengths in [Lo, Hi).
type Bucket struct {
	Lo   int `json:"lo"`
	Hi   int `json:"hi"`
	Good int `json:"good"`
	Bad  int `json:"bad"`
}

// Summary is everything the dashboard plots.
type Summary struct {
	Source    string                 `json:"source"`
	Labels    LabelCounts            `json:"labels"`
	TLDs      []Frequency            `json:"tlds"`
	Keywords  []Frequency            `json:"keywords"`
	Lengths   map[string]LengthStats `json:"lengths"`
	Histogram []Bucket               `json:"histogram"`
}

// Summarize computes every aggregate in one pass over rows plus sorting.
func Summarize(rows []Row, opts Options) *Summary {
	opts = opts.withDefaults()
	s := &Summary{Labels: CountLabels(rows)}
	s.TLDs = top(TLDFrequency(rows), opts.TopN)
	s.Keywords = KeywordFrequency(rows, opts.Keywords)
	s.Lengths = map[string]LengthStats{
		"all":     lengthStats(rows, ""),
		LabelGood: lengthStats(rows, LabelGood),
		LabelBad:  lengthStats(rows, LabelBad),
	}
	s.Histogram = LengthHistogram(rows, opts.HistogramBins)
	return s
}

// Summarize is a convenience wrapper that keeps the dataset source.
func (d *Dataset) Summarize(opts Options) *Summary {
	s := Summarize(d.Rows, opts)
	s.Source = d.Source
	return s
}

// CountLabels tallies good and bad rows.
func CountLabels(rows []Row) LabelCounts {
	var c LabelCounts
	for _, r := range rows {
		switch r.Label {
		case LabelGood:
			c.Good++
		case LabelBad:
			c.Bad++
		default:
			c.Other++
		}
	}
	c.Total = len(rows)
	return c
}

func (f *Frequency) add(label string) {
	f.Total++
	switch label {
	case LabelGood:
		f.Good++
	case LabelBad:
		f.Bad++
	}
}

// TLDFrequency counts rows per public suffix, sorted by count then name.
func TLDFrequency(rows []Row) []Frequency {
	idx := make(map[string]*Frequency)
	for _, r := range rows {
		tld := TLD(r.URL)
		f, ok := idx[tld]
		if !ok {
			f = &Frequency{Name: tld}
			idx[tld] = f
		}
		f.add(r.Label)
	}
	out := make([]Frequency, 0, len(idx))
	for _, f := range idx {
		out = append(out, *f)
	}
	sortFrequencies(out)
	return out
}

// KeywordFrequency counts rows whose URL contains each keyword, ignoring case.
// Output keeps keyword order.
func KeywordFrequency(rows []Row, keywords []string) []Frequency {
	out := make([]Frequency, len(keywords))
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		out[i].Name = k
		lower[i] = strings.ToLower(k)
	}
	for _, r := range rows {
		u := strings.ToLower(r.URL)
		for i, k := range lower {
			if k != "" && strings.Contains(u, k) {
				out[i].add(r.Label)
			}
		}
	}
	return out
}

// LengthHistogram splits URL lengths into bins equal-width buckets from 0 to
// the longest URL.
func LengthHistogram(rows []Row, bins int) []Bucket {
	if len(rows) == 0 || bins <= 0 {
		return nil
	}
	longest := 0
	for _, r := range rows {
		longest = max(longest, len(r.URL))
	}
	width := (longest + bins) / bins
	out := make([]Bucket, bins)
	for i := range out {
		out[i].Lo = i * width
		out[i].Hi = (i + 1) * width
	}
	for _, r := range rows {
		b := &out[min(len(r.URL)/width, bins-1)]
		switch r.Label {
		case LabelGood:
			b.Good++
		case LabelBad:
			b.Bad++
		}
	}
	return out
}

// lengthStats covers rows with the given label, or all rows for "".
func lengthStats(rows []Row, label string) LengthStats {
	var lens []int
	for _, r := range rows {
		if label == "" || r.Label == label {
			lens = append(lens, len(r.URL))
		}
	}
	return LengthStatsOf(lens)
}

// LengthStatsOf computes descriptive statistics (population stddev).
func LengthStatsOf(lens []int) LengthStats {
	if len(lens) == 0 {
		return LengthStats{}
	}
	sorted := slices.Clone(lens)
	slices.Sort(sorted)

	var sum float64
	for _, l := range sorted {
		sum += float64(l)
	}
	n := len(sorted)
	mean := sum / float64(n)
	var sq float64
	for _, l := range sorted {
		d := float64(l) - mean
		sq += d * d
	}
	median := float64(sorted[n/2])
	if n%2 == 0 {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}
	return LengthStats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   mean,
		Median: median,
		StdDev: math.Sqrt(sq / float64(n)),
	}
}

// Host extracts the lower-cased host of a URL that may lack a scheme.
func Host(raw string) string { return netguard.Host(raw) }

// TLD returns the public suffix of the URL's host, "(ip)" for IP literals and
// "(none)" when no host can be found.
func TLD(raw string) string {
	host := Host(raw)
	if host == "" {
		return "(none)"
	}
	if _, ok := netguard.HostIP(host); ok {
		return "(ip)"
	}
	ps, _ := publicsuffix.PublicSuffix(host)
	return ps
}

func top(fs []Frequency, n int) []Frequency {
	if len(fs) > n {
		return fs[:n]
	}
	return fs
}

func sortFrequencies(fs []Frequency) {
	slices.SortFunc(fs, func(a, b Frequency) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
