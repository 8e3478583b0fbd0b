package handlers

import (
	"fmt"
	"strconv"

	"github.com/veil-waf/phishdash/internal/dataset"
)

// chart is a horizontal stacked bar chart of good/bad counts. Widths are
// percentages of the largest bar.
type chart struct {
	Title string
	Bars  []bar
}

type bar struct {
	Label     string
	Good      int
	Bad       int
	Total     int
	GoodWidth float64
	BadWidth  float64
}

type lengthRow struct {
	Group string
	dataset.LengthStats
}

func newChart(title string, freqs []dataset.Frequency) chart {
	c := chart{Title: title}
	longest := 0
	for _, f := range freqs {
		longest = max(longest, f.Total)
	}
	for _, f := range freqs {
		b := bar{Label: f.Name, Good: f.Good, Bad: f.Bad, Total: f.Total}
		if longest > 0 {
			b.GoodWidth = 100 * float64(f.Good) / float64(longest)
			b.BadWidth = 100 * float64(f.Bad) / float64(longest)
		}
		c.Bars = append(c.Bars, b)
	}
	return c
}

func summaryCharts(s *dataset.Summary) []chart {
	labels := []dataset.Frequency{
		{Name: dataset.LabelGood, Total: s.Labels.Good, Good: s.Labels.Good},
		{Name: dataset.LabelBad, Total: s.Labels.Bad, Bad: s.Labels.Bad},
	}
	if s.Labels.Other > 0 {
		labels = append(labels, dataset.Frequency{Name: "other", Total: s.Labels.Other})
	}
	return []chart{
		newChart("Label counts", labels),
		newChart("Top-level domains", s.TLDs),
		newChart("Keywords", s.Keywords),
	}
}

func histogramChart(buckets []dataset.Bucket) chart {
	freqs := make([]dataset.Frequency, 0, len(buckets))
	for _, b := range buckets {
		freqs = append(freqs, dataset.Frequency{
			Name:  fmt.Sprintf("%d-%d", b.Lo, b.Hi-1),
			Total: b.Good + b.Bad,
			Good:  b.Good,
			Bad:   b.Bad,
		})
	}
	return newChart("URL length distribution", freqs)
}

func lengthRows(s *dataset.Summary) []lengthRow {
	var out []lengthRow
	for _, g := range []string{"all", dataset.LabelGood, dataset.LabelBad} {
		if st, ok := s.Lengths[g]; ok {
			out = append(out, lengthRow{Group: g, LengthStats: st})
		}
	}
	return out
}

func trimFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}
