package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/analysis"
	"github.com/uzbuild/market-intel/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export <path.xlsx>",
	Short: "Write the market report workbook",
	Long:  "Exports the leaderboard, market overview, and optional company profiles to a multi-sheet Excel workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		months, _ := cmd.Flags().GetInt("months")
		topN, _ := cmd.Flags().GetInt("top")
		profiles, _ := cmd.Flags().GetStringSlice("profile")

		exporter := report.NewExporter(analysis.New(pool))
		err = exporter.Export(ctx, args[0], report.Options{
			LookbackMonths: months,
			TopN:           topN,
			ProfileSTIRs:   profiles,
		})
		if err != nil {
			return eris.Wrap(err, "export")
		}

		zap.L().Info("report exported", zap.String("path", args[0]))
		return nil
	},
}

func init() {
	exportCmd.Flags().Int("months", 12, "lookback window in months")
	exportCmd.Flags().Int("top", 15, "leaderboard size")
	exportCmd.Flags().StringSlice("profile", nil, "STIRs to add profile sheets for")
	rootCmd.AddCommand(exportCmd)
}
