package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file.cs> <method>",
	Short: "Print the control-flow graph of a C# method",
	Long: `Lowers a C# method into its control-flow graph and prints it.
With --yaml the graph is written as a description that "lva solve" accepts.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, method := args[0], args[1]

		info, err := os.Stat(filePath)
		if err != nil {
			return fmt.Errorf("stat file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("path is a directory, expected a file: %s", filePath)
		}
		if !strings.HasSuffix(strings.ToLower(filePath), ".cs") {
			return fmt.Errorf("unsupported file type: %s (only .cs files supported)", filePath)
		}

		g, err := cfg.ExtractCSharpCFG(filePath, method)
		if err != nil {
			if errors.Is(err, cfg.ErrMethodNotFound) {
				if suggestion := closestMethod(filePath, method); suggestion != "" {
					return fmt.Errorf("method %q not found in %s\nDid you mean: %s?", method, filePath, suggestion)
				}
			}
			return fmt.Errorf("extracting CFG: %w", err)
		}

		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			data, err := cfg.EncodeGraph(g)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), cfg.Format(g))
		return nil
	},
}

// closestMethod returns a declared method whose name matches ignoring case,
// or shares a prefix with the requested one.
func closestMethod(filePath, method string) string {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return ""
	}
	methods, err := cfg.ExtractCSharpMethods(content)
	if err != nil {
		return ""
	}
	lower := strings.ToLower(method)
	for _, m := range methods {
		if strings.ToLower(m) == lower {
			return m
		}
	}
	for _, m := range methods {
		l := strings.ToLower(m)
		if strings.HasPrefix(l, lower) || strings.HasPrefix(lower, l) {
			return m
		}
	}
	return ""
}

func init() {
	graphCmd.Flags().Bool("yaml", false, "Output as a YAML graph description")
	RootCmd.AddCommand(graphCmd)
}
