package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/spf13/cobra"
)

// methodsCmd represents the methods command
var methodsCmd = &cobra.Command{
	Use:   "methods <file.cs>",
	Short: "List the methods declared in a C# file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		methods, err := cfg.ExtractCSharpMethods(content)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		if jsonOutput(cmd) {
			if methods == nil {
				methods = []string{}
			}
			data, err := json.MarshalIndent(methods, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		for _, m := range methods {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

func init() {
	methodsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(methodsCmd)
}
