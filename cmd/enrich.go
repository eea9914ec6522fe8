package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/aggregate"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Recompute company aggregates",
	Long:  "Recomputes win counts, contract volumes, discount averages, active regions, and classification for every company from the stored tender rows.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		agg := aggregate.New(pool, aggregate.DefaultThresholds())

		if stir, _ := cmd.Flags().GetString("stir"); stir != "" {
			if err := agg.Recompute(ctx, stir); err != nil {
				return eris.Wrap(err, "enrich")
			}
			zap.L().Info("aggregates recomputed", zap.String("stir", stir))
			return nil
		}

		n, err := agg.RecomputeAll(ctx)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}
		zap.L().Info("aggregates recomputed", zap.Int64("companies", n))
		return nil
	},
}

func init() {
	enrichCmd.Flags().String("stir", "", "recompute a single company")
	rootCmd.AddCommand(enrichCmd)
}
