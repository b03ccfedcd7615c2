package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geoequity",
	Short: "Economic justice value scoring for local businesses",
	Long:  "Scores retail and service businesses on wage fairness, pay equity, local impact, affordability and environmental responsibility, and serves the scores next to an Overpass map-data proxy.",
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
