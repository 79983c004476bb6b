package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/config"
)

var (
	version = "0.1.0"

	configPath string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "attune",
		Short: "Conversational context and value-arbitration engine",
		Long: `Attune maintains per-conversation working memory, mines interaction
patterns, and arbitrates a core value hierarchy into response
constraints. Messages go in; enhanced messages, context snapshots, and
constraint sets come out.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (env vars still win)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newProcessCmd())
	root.AddCommand(newValuesCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig resolves the effective configuration: defaults, then the
// optional YAML file, then environment overrides.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
