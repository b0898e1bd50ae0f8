// Package commands provides the CLI commands for the lva tool.
package commands

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/internal/log"
	"github.com/l3aro/go-liveness/pkg/batch"
	"github.com/l3aro/go-liveness/pkg/cache"
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "lva",
	Short: "lva - Live variable analysis for C# methods",
	Long: `lva computes which variables are live on entry to and exit from every
basic block of a method's control-flow graph, and which variables are
captured by lambdas or local functions.

Commands:
  analyze     Analyze C# files and graph descriptions
  solve       Analyze a single YAML graph description
  graph       Print the control-flow graph of a C# method
  methods     List the methods declared in a C# file
  watch       Re-analyze files as they change
  cache       Inspect or clear the analysis cache
  init        Create a configuration file interactively
  doctor      Check configuration, front end and cache

Use "lva [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return saveStore()
	},
}

// session holds what every command needs once flags and config are read.
type session struct {
	cfg        *config.Config
	configPath string
	logger     *log.DefaultLogger
	store      *cache.Store
}

var current session

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	var (
		c   *config.Config
		err error
	)
	if configPath != "" {
		c, err = config.LoadFromFile(configPath)
	} else {
		c, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		c.Verbose = true
	}

	current = session{
		cfg:        c,
		configPath: configPath,
		logger:     c.Logger(),
	}
	current.logger.Debug("config loaded", "path", configPath, "workers", c.Workers)

	if !c.CacheEnabled || noCache {
		return nil
	}
	current.store = cache.NewStore(cache.Options{
		MaxSize:  c.CacheMaxEntries,
		MaxBytes: c.CacheMaxBytes,
	}, c.CachePath)
	if err := current.store.Load(); err != nil {
		msg := "discarding unreadable cache"
		if errors.Is(err, cache.ErrIncompatibleFormat) {
			msg = "discarding cache written by another version"
		}
		current.logger.Warn(msg, "error", err)
		current.store.Clear()
	}
	current.logger.Debug("cache loaded", "path", c.CachePath, "entries", current.store.Cache().Len())
	return nil
}

func saveStore() error {
	if current.store == nil {
		return nil
	}
	if err := current.store.Save(); err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}
	return nil
}

// analyzer returns the cache store as a batch.Analyzer, or nil when caching
// is off so the runner falls back to plain solving.
func analyzer() batch.Analyzer {
	if current.store == nil {
		return nil
	}
	return current.store
}

// jsonOutput reports whether the command should print JSON.
func jsonOutput(cmd *cobra.Command) bool {
	if cmd.Flags().Lookup("json") != nil {
		if v, _ := cmd.Flags().GetBool("json"); v {
			return true
		}
	}
	return current.cfg != nil && current.cfg.Output == config.OutputJSON
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: ~/.lva/config.yaml, ./.lva/config.yaml)")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")
	RootCmd.PersistentFlags().Bool("no-cache", false, "Do not read or write the analysis cache")
}
