package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/l3aro/go-liveness/internal/scanner"
	"github.com/l3aro/go-liveness/pkg/batch"
	"github.com/spf13/cobra"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze C# files and graph descriptions",
	Long: `Analyzes every method of the given C# files and YAML graph descriptions.
Directories are scanned recursively, honoring .lvaignore files.

Examples:
  lva analyze
  lva analyze src/Parser.cs --method Parse
  lva analyze testdata/ --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		methods, _ := cmd.Flags().GetStringArray("method")

		files, err := newScanner().ScanPaths(args)
		if err != nil {
			return fmt.Errorf("scanning inputs: %w", err)
		}
		current.logger.Debug("inputs collected", "files", len(files))

		outcomes, err := newRunner(methods).Run(cmd.Context(), files)
		if err != nil {
			return err
		}
		if err := printOutcomes(cmd.OutOrStdout(), outcomes, jsonOutput(cmd)); err != nil {
			return err
		}

		totals := batch.Count(outcomes)
		if totals.Failed > 0 {
			return fmt.Errorf("%d input(s) failed", totals.Failed)
		}
		return nil
	},
}

func newScanner() *scanner.Scanner {
	opts := scanner.DefaultOptions()
	opts.Extensions = current.cfg.Extensions
	return scanner.New(opts)
}

func newRunner(methods []string) *batch.Runner {
	return batch.New(batch.Options{
		Workers:  current.cfg.Workers,
		Analyzer: analyzer(),
		Methods:  methods,
		Logger:   current.logger,
	})
}

// outcomeJSON adds the error text that batch.Outcome leaves out of JSON.
type outcomeJSON struct {
	batch.Outcome
	Error string `json:"error,omitempty"`
}

func printOutcomes(w io.Writer, outcomes []batch.Outcome, asJSON bool) error {
	if asJSON {
		out := make([]outcomeJSON, 0, len(outcomes))
		for _, o := range outcomes {
			entry := outcomeJSON{Outcome: o}
			if o.Err != nil {
				entry.Error = o.Err.Error()
			}
			out = append(out, entry)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	for _, o := range outcomes {
		if o.Err != nil {
			if o.Method != "" {
				fmt.Fprintf(w, "%s: %s: error: %v\n\n", o.File, o.Method, o.Err)
			} else {
				fmt.Fprintf(w, "%s: error: %v\n\n", o.File, o.Err)
			}
			continue
		}
		suffix := ""
		if o.Cached {
			suffix = " (cached)"
		}
		fmt.Fprintf(w, "# %s%s\n", o.File, suffix)
		fmt.Fprintln(w, o.Summary.String())
	}

	totals := batch.Count(outcomes)
	fmt.Fprintf(w, "%d method(s) analyzed, %d cached, %d failed\n", totals.Methods, totals.Cached, totals.Failed)
	return nil
}

func init() {
	analyzeCmd.Flags().StringArrayP("method", "m", nil, "Only analyze the named method (repeatable)")
	analyzeCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(analyzeCmd)
}
