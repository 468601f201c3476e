// Package main provides the Local Recos CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localrecos/recos-engine/internal/app"
	"github.com/localrecos/recos-engine/internal/config"
	"github.com/localrecos/recos-engine/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

var rootCmd = &cobra.Command{
	Use:   "recos",
	Short: "Local Recos CLI for restaurant search and data administration",
	Long: `Local Recos finds restaurants recommended by local communities.

Use this tool to:
- Search restaurants by food and city
- Ask free-form questions ("cheap samosas in Ottawa")
- Preview the synthetic fallback for a query
- Import restaurants from YAML

With the default in-memory storage every invocation starts from the
sample data; point --config at a sqlite or postgres store to persist.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			Output:      os.Stderr,
			ServiceName: "recos-cli",
		})
		ui = NewUI(outputJSON, noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newSentimentCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newCitiesCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newImportCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp wires the engine from the loaded config. Callers must Close it.
func openApp(ctx context.Context) (*app.App, error) {
	application, err := app.New(ctx, cfg, logger, app.Overrides{})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return application, nil
}
