package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/config"
	"github.com/uzbuild/market-intel/internal/db"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "market-intel",
	Short: "Construction market intelligence pipeline",
	Long:  "Scrapes Uzbek tender results and contractor ratings, maintains a canonical company registry, and produces market analysis reports.",
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

// connect opens the configured Postgres pool.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	return db.Connect(ctx, cfg.Database.DSN, &cfg.Database.Pool)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
