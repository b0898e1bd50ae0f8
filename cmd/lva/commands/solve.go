package commands

import (
	"encoding/json"
	"fmt"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/lva"
	"github.com/spf13/cobra"
)

// solveCmd represents the solve command
var solveCmd = &cobra.Command{
	Use:   "solve <graph.yaml>",
	Short: "Analyze a single YAML graph description",
	Long: `Decodes a YAML graph description, validates it and prints the
LiveIn/LiveOut sets of every block and the captured variables.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := cfg.LoadGraph(args[0])
		if err != nil {
			return err
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("invalid graph %s: %w", args[0], err)
		}

		var summary *lva.Summary
		if store := current.store; store != nil {
			var cached bool
			summary, cached = store.Analyze(g)
			current.logger.Debug("solved", "method", g.Name, "cached", cached)
		} else {
			summary = lva.Solve(g).Summary()
		}

		if jsonOutput(cmd) {
			data, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), summary.String())
		return nil
	},
}

func init() {
	solveCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(solveCmd)
}
