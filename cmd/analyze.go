package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/uzbuild/market-intel/internal/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run market analysis queries",
	Long:  "Commands for rankings, market overview, company profiles, positioning, comparison, and name search.",
}

var analyzeTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Top companies by tender wins",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := analysis.New(pool).TopCompanies(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "analyze top")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tCOMPANY\tSTIR\tREGION\tRATING\tWINS\tVALUE (UZS)\tAVG DISC %")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%.0f\t%.2f\n",
				r.Rank, r.CanonicalName, r.STIR, r.Region, r.RatingLetter,
				r.TotalWins, r.TotalValue, r.AvgDiscount)
		}
		return w.Flush()
	},
}

var analyzeMarketCmd = &cobra.Command{
	Use:   "market",
	Short: "Market overview for the lookback window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		months, _ := cmd.Flags().GetInt("months")
		o, err := analysis.New(pool).MarketOverview(ctx, months)
		if err != nil {
			return eris.Wrap(err, "analyze market")
		}

		fmt.Printf("Tenders: %d | Winners: %d | Volume: %.0f UZS | Avg discount: %.2f%%\n",
			o.Summary.TotalTenders, o.Summary.UniqueWinners,
			o.Summary.TotalVolume, o.Summary.AvgDiscount)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nREGION\tTENDERS\tVOLUME (UZS)")
		for _, r := range o.ByRegion {
			fmt.Fprintf(w, "%s\t%d\t%.0f\n", r.Region, r.Tenders, r.Volume)
		}
		fmt.Fprintln(w, "\nMONTH\tTENDERS\tVOLUME (UZS)")
		for _, m := range o.MonthlyTrend {
			fmt.Fprintf(w, "%s\t%d\t%.0f\n", m.Month, m.Tenders, m.Volume)
		}
		return w.Flush()
	},
}

var analyzeProfileCmd = &cobra.Command{
	Use:   "profile <stir>",
	Short: "Deep-dive profile for one company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		p, err := analysis.New(pool).CompanyProfile(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "analyze profile")
		}

		c := p.Company
		fmt.Printf("%s (%s)\n", c.CanonicalName, c.STIR)
		fmt.Printf("Region: %s | Rating: %s | Type: %s\n", c.Region, c.RatingLetter, c.CompanyType)
		fmt.Printf("Wins: %d | Value: %.0f UZS | Avg discount: %.2f%%\n",
			c.TotalWins, c.TotalContractValue, c.AvgDiscountPct)

		if len(p.RatingBreakdown) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\nCATEGORY\tEARNED\tMAX\tPCT")
			for _, cat := range p.RatingBreakdown {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.1f%%\n", cat.Category, cat.Earned, cat.Max, cat.Percent)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
		return nil
	},
}

var analyzePositionCmd = &cobra.Command{
	Use:   "position <stir>",
	Short: "Rank a company against the market leaders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		rows, err := analysis.New(pool).Position(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "analyze position")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COMPANY\tSTIR\tWINS\tRANK (WINS)\tRANK (VALUE)\tRANK (RATING)\tOF")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.CanonicalName, r.STIR, r.TotalWins,
				r.RankWins, r.RankValue, r.RankRating, r.TotalCompanies)
		}
		return w.Flush()
	},
}

var analyzeCompareCmd = &cobra.Command{
	Use:   "compare <stir> <stir> [stir...]",
	Short: "Head-to-head comparison of companies",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		c, err := analysis.New(pool).Compare(ctx, args)
		if err != nil {
			return eris.Wrap(err, "analyze compare")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COMPANY\tSTIR\tRATING\tWINS\tVALUE (UZS)\tAVG DISC %\tREGION")
		for _, r := range c.Summary {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f\t%.2f\t%s\n",
				r.CanonicalName, r.STIR, r.RatingLetter,
				r.TotalWins, r.TotalValue, r.AvgDiscount, r.Region)
		}
		if len(c.SharedCustomers) > 0 {
			fmt.Fprintln(w, "\nSHARED CUSTOMER\tCOMPANIES\tTENDERS\tVOLUME (UZS)")
			for _, s := range c.SharedCustomers {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\n",
					s.CustomerName, s.Companies, s.Tenders, s.Volume)
			}
		}
		return w.Flush()
	},
}

var analyzeRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Largest deals of the last 12 months",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		deals, err := analysis.New(pool).RecentDeals(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "analyze recent")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEAL\tDATE\tWINNER\tRATING\tCUSTOMER\tCOST (UZS)\tDISC %\tREGION")
		for _, d := range deals {
			winner := d.CanonicalName
			if winner == "" {
				winner = d.ProviderName
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.0f\t%.2f\t%s\n",
				d.DealID, d.DealDate.Format("2006-01-02"), winner,
				d.RatingLetter, d.CustomerName, d.DealCost, d.DiscountPct, d.Region)
		}
		return w.Flush()
	},
}

var analyzeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find companies by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		hits, err := analysis.New(pool).Search(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "analyze search")
		}
		if len(hits) == 0 {
			fmt.Fprintln(os.Stderr, "No companies matched.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STIR\tCOMPANY\tWINS\tVALUE (UZS)\tRATING")
		for _, h := range hits {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\t%s\n",
				h.STIR, h.CanonicalName, h.TotalWins, h.TotalValue, h.RatingLetter)
		}
		return w.Flush()
	},
}

func init() {
	analyzeTopCmd.Flags().Int("limit", 15, "number of companies")
	analyzeMarketCmd.Flags().Int("months", 12, "lookback window in months")
	analyzeSearchCmd.Flags().Int("limit", 10, "max matches")
	analyzeRecentCmd.Flags().Int("limit", 20, "number of deals")
	analyzeCmd.AddCommand(
		analyzeTopCmd, analyzeMarketCmd, analyzeProfileCmd,
		analyzePositionCmd, analyzeCompareCmd, analyzeSearchCmd,
		analyzeRecentCmd,
	)
	rootCmd.AddCommand(analyzeCmd)
}
