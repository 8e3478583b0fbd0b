package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/veil-waf/phishdash/internal/db"
	"github.com/veil-waf/phishdash/internal/predict"
)

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "predict [url...]",
		Short: "Classify URLs from arguments, or one per line from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			inputs := args
			if len(inputs) == 0 {
				if inputs, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for _, in := range inputs {
				res := a.Predict(cmd.Context(), in, db.SourceAPI)
				if asJSON {
					if err := enc.Encode(res); err != nil {
						return err
					}
					continue
				}
				printResult(out, res)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON result per line")
	return cmd
}

var verdictColors = map[predict.Verdict]*color.Color{
	predict.Safe:         color.New(color.FgGreen),
	predict.Malicious:    color.New(color.FgRed, color.Bold),
	predict.Inconclusive: color.New(color.FgYellow),
}

func printResult(w io.Writer, res *predict.Result) {
	c := verdictColors[res.Verdict]
	c.Fprintf(w, "%-12s", res.Verdict)
	fmt.Fprintf(w, " %s  %s\n", res.Input, res.Message)
	if res.Error != "" {
		color.New(color.Faint).Fprintf(w, "             %s\n", res.Error)
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
