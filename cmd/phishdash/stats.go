package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/veil-waf/phishdash/internal/dataset"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the labelled URL dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := loadApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Summary == nil {
				return fmt.Errorf("dataset not loaded: %w", a.DatasetErr)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a.Summary)
			}
			printSummary(cmd.OutOrStdout(), a.Summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func printSummary(w io.Writer, s *dataset.Summary) {
	heading := color.New(color.FgCyan, color.Bold)

	heading.Fprintln(w, "Labels")
	fmt.Fprintf(w, "  good %d  bad %d", s.Labels.Good, s.Labels.Bad)
	if s.Labels.Other > 0 {
		fmt.Fprintf(w, "  other %d", s.Labels.Other)
	}
	fmt.Fprintln(w)

	for _, sec := range []struct {
		title string
		freqs []dataset.Frequency
	}{
		{"Top-level domains", s.TLDs},
		{"Keywords", s.Keywords},
	} {
		fmt.Fprintln(w)
		heading.Fprintln(w, sec.title)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  name\ttotal\tgood\tbad")
		for _, f := range sec.freqs {
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\n", f.Name, f.Total, f.Good, f.Bad)
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	heading.Fprintln(w, "URL length")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  group\tcount\tmean\tstddev\tmin\tmax")
	for _, g := range []string{"all", dataset.LabelGood, dataset.LabelBad} {
		st, ok := s.Lengths[g]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%d\t%d\n", g, st.Count,
			strconv.FormatFloat(st.Mean, 'f', 1, 64),
			strconv.FormatFloat(st.StdDev, 'f', 1, 64),
			st.Min, st.Max)
	}
	tw.Flush()
}
