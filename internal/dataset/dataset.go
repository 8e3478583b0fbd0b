// Package dataset loads the labelled URL corpus and computes the descriptive
// statistics shown on the dashboard.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Canonical label values in the corpus.
const (
	LabelGood = "good"
	LabelBad  = "bad"
)

// Row is one labelled URL.
type Row struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// Dataset is immutable after Load.
type Dataset struct {
	Source string
	Rows   []Row
}

// ErrNoRows is returned for files without a single data row.
var ErrNoRows = errors.New("dataset has no rows")

// Load reads a CSV file from disk.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Dataset{Source: path, Rows: rows}, nil
}

// Read parses CSV with a URL column and a label column. A header row naming
// "url" and "label" (any case) picks the columns; otherwise columns 0 and 1
// are used and the first row is data.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	urlCol, labelCol := 0, 1
	var rows []Row
	first := true
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if first {
			first = false
			if u, l, ok := headerColumns(rec); ok {
				urlCol, labelCol = u, l
				continue
			}
		}
		if len(rec) <= urlCol || len(rec) <= labelCol {
			continue
		}
		rows = append(rows, Row{
			URL:   strings.TrimSpace(rec[urlCol]),
			Label: strings.ToLower(strings.TrimSpace(rec[labelCol])),
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

func headerColumns(rec []string) (urlCol, labelCol int, ok bool) {
	urlCol, labelCol = -1, -1
	for i, name := range rec {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "url", "urls", "link":
			urlCol = i
		case "label", "labels", "class", "type":
			labelCol = i
		}
	}
	return urlCol, labelCol, urlCol >= 0 && labelCol >= 0
}
