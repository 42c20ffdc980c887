package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "scope-copilot",
	Short: "Conversational project scoping engine",
	Long:  "Drives a multi-turn dialogue that fills a platform-specific project schema with confidence-tracked values, recommends similar past projects, and records a reasoning trace for every turn.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
