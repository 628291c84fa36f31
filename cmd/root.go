package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/maps-cli/internal/config"
)

var cfg *config.Config

var (
	rootHeadful  bool
	rootLogLevel string
)

// configModeKey names the cobra annotation holding the config.Validate mode
// a command needs. Subcommands inherit their parent's mode.
const configModeKey = "config-mode"

var rootCmd = &cobra.Command{
	Use:   "maps-cli",
	Short: "Business listing scraper for map search results",
	Long:  "Expands a search query into variants, scrolls map search results to discover listings, extracts each listing into a structured record, and exports or stores the deduplicated set.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyRootFlags(c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if mode := configMode(cmd); mode != "" {
			if err := cfg.Validate(mode); err != nil {
				return err
			}
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("headless", cfg.Browser.Headless),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// applyRootFlags layers global flag overrides on top of loaded config.
func applyRootFlags(c *config.Config) {
	if rootHeadful {
		c.Browser.Headless = false
	}
	if rootLogLevel != "" {
		c.Log.Level = rootLogLevel
	}
}

// configMode returns the validation mode annotated on cmd or its nearest
// ancestor, or "" when the command needs no validated config.
func configMode(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if mode, ok := c.Annotations[configModeKey]; ok {
			return mode
		}
	}
	return ""
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootHeadful, "headful", false, "show the browser window instead of running headless")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
