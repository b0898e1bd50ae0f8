package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/internal/healthcheck"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration, front end and cache",
	Long: `Checks the configuration, lowers and solves a sample method through the
C# front end, and verifies that the cache file can be read.`,
	Args: cobra.NoArgs,
	// Runs without the session so that a broken config can still be
	// replaced or diagnosed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		current = session{}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		explicit, _ := cmd.Flags().GetString("config")
		c, configPath, err := loadConfigWithPath(explicit)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		result, err := healthcheck.Check(c, configPath, configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd.OutOrStdout(), result)

		if !result.Healthy() {
			return fmt.Errorf("health check failed: one or more components reported an error")
		}
		return nil
	},
}

// loadConfigWithPath loads the explicit config file, else the project one,
// else the global one. With none present the defaults are used and the
// returned path is empty.
func loadConfigWithPath(explicit string) (*config.Config, string, error) {
	effectivePath := explicit
	if effectivePath == "" {
		for _, p := range []string{config.ProjectConfigFilePath(), config.GlobalConfigFilePath()} {
			if fileExists(p) {
				effectivePath = p
				break
			}
		}
	}
	if effectivePath == "" {
		c, err := config.Load()
		return c, "", err
	}

	c, err := config.LoadFromFile(effectivePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", effectivePath, err)
	}
	return c, effectivePath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Fprintf(w, "Using config: defaults (no config file found, run 'lva init' to create one)\n")
	} else {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}
	displayComponents(w, result)
}

func displayComponents(w io.Writer, result *healthcheck.HealthCheckResult) {
	fmt.Fprintln(w, "\nFront end:")
	printComponentStatus(w, result.Parser)
	fmt.Fprintln(w, "\nCache:")
	printComponentStatus(w, result.Cache)
}

func printComponentStatus(w io.Writer, s healthcheck.ComponentStatus) {
	fmt.Fprintf(w, "  Status: %s %s\n", formatStatusIcon(s.Status), s.Status)
	if s.Detail != "" {
		fmt.Fprintf(w, "  %s\n", s.Detail)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", s.Error)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusOK:
		return "✓"
	case healthcheck.StatusMissing, healthcheck.StatusDisabled:
		return "○"
	case healthcheck.StatusError:
		return "✗"
	default:
		return "?"
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
