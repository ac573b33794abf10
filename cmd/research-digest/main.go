// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-digest CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-digest/internal/config"
	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/internal/secrets"
	"github.com/pdiddy/research-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// noConfig marks commands that run without loading the configuration.
const noConfig = "no-config"

var (
	// loadedConfig is the validated configuration, set by the root
	// command's pre-run hook.
	loadedConfig *types.Config

	// loadedSecrets holds credentials from the secrets directory and
	// RESEARCH_DIGEST_SECRET_* environment variables.
	loadedSecrets map[string]string

	logger = zerolog.Nop()
)

// rootCmd is the base command for the research-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "research-digest",
	Short: "Collect, filter and export research updates from many sources",
	Long: `research-digest periodically collects items from arXiv, Semantic Scholar,
DBLP, OpenAlex, conference feeds, JSON APIs and web pages, runs each task's
filter chain over them, and writes the surviving records for a renderer.

Tasks, sources and filters are declared in research-digest.yaml. Use run to
execute tasks once and daemon to run them on their intervals.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if cmd.Annotations[noConfig] != "" {
			logger = observability.NewLogger(types.LoggingConfig{Level: level, Format: "console"})
			return nil
		}

		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if level != "" {
			cfg.Logging.Level = level
		}
		loadedConfig = cfg
		logger = observability.NewLogger(cfg.Logging)

		s, err := secrets.Load(cfg.SecretsDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = secrets.Merge(s, secrets.FromEnv(os.Environ()))
		if len(loadedSecrets) > 0 {
			keys := make([]string, 0, len(loadedSecrets))
			for k := range loadedSecrets {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("Loaded secrets")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-digest.yaml or ~/.config/research-digest/research-digest.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (trace, debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
