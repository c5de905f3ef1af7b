package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetsignal/streetsignal/internal/config"
	"github.com/streetsignal/streetsignal/internal/preset"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "streetsignal",
	Short: "Rank commercial streets in UK postcode districts",
	Long:  "Geocodes postcode districts, pulls shops and streets from OpenStreetMap, attributes each shop to its street, and ranks streets by activity.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if cfg.Presets.File != "" {
			loaded, err := preset.LoadFile(cfg.Presets.File)
			if err != nil {
				return fmt.Errorf("load presets: %w", err)
			}
			preset.Register(loaded)
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
