package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/uzbuild/market-intel/internal/aggregate"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Show the company classification breakdown",
	Long:  "Prints how many companies fall into each classification tier. With --refresh, aggregates and classifications are recomputed first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			agg := aggregate.New(pool, aggregate.DefaultThresholds())
			if _, err := agg.RecomputeAll(ctx); err != nil {
				return eris.Wrap(err, "classify refresh")
			}
		}

		rows, err := pool.Query(ctx, `
			SELECT company_type, COUNT(*),
			       COALESCE(SUM(total_wins), 0),
			       COALESCE(SUM(total_contract_value), 0)
			FROM companies
			GROUP BY company_type
			ORDER BY COUNT(*) DESC`,
		)
		if err != nil {
			return eris.Wrap(err, "classify")
		}
		defer rows.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tCOMPANIES\tWINS\tVALUE (UZS)")
		for rows.Next() {
			var (
				typ   string
				count int64
				wins  int64
				value float64
			)
			if err := rows.Scan(&typ, &count, &wins, &value); err != nil {
				return eris.Wrap(err, "classify scan")
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\n", typ, count, wins, value)
		}
		if err := rows.Err(); err != nil {
			return eris.Wrap(err, "classify rows")
		}
		return w.Flush()
	},
}

func init() {
	classifyCmd.Flags().Bool("refresh", false, "recompute aggregates before reporting")
	rootCmd.AddCommand(classifyCmd)
}
