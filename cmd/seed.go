package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/rating"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load rating reference data",
	Long:  "Seeds the rating category and criteria catalog from the embedded reference data. Safe to re-run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := rating.NewCatalog(pool).Seed(ctx)
		if err != nil {
			return eris.Wrap(err, "seed")
		}

		zap.L().Info("catalog seeded", zap.Int("criteria", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
