package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/pipeline"
	"github.com/uzbuild/market-intel/internal/rating"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [etender|reyting|all]",
	Short: "Run a scrape against one or both feeds",
	Long:  "Pages the selected feed, stores construction deals and company ratings, and recomputes aggregates for every company touched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		target := args[0]
		switch target {
		case "etender", "reyting", "all":
		default:
			return eris.Errorf("unknown feed %q (want etender, reyting, or all)", target)
		}

		maxPages, _ := cmd.Flags().GetInt("max-pages")
		resume, _ := cmd.Flags().GetBool("resume")
		opts := pipeline.RunOptions{MaxPages: maxPages, Resume: resume}

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		// The rating feed creates criteria on the fly; make sure the
		// reference catalog exists first.
		if target != "etender" {
			if _, err := rating.NewCatalog(pool).Seed(ctx); err != nil {
				return err
			}
		}

		runner := pipeline.NewRunner(cfg, pool)

		if target == "etender" || target == "all" {
			job, err := runner.RunETender(ctx, opts)
			if job != nil {
				printJob(job)
			}
			if err != nil {
				return eris.Wrap(err, "scrape etender")
			}
		}
		if target == "reyting" || target == "all" {
			job, err := runner.RunReyting(ctx, opts)
			if job != nil {
				printJob(job)
			}
			if err != nil {
				return eris.Wrap(err, "scrape reyting")
			}
		}
		return nil
	},
}

func printJob(job *model.ScrapeJob) {
	fmt.Fprintf(os.Stdout,
		"%s run %s: %s | found=%d inserted=%d updated=%d skipped=%d failed=%d last_page=%d\n",
		job.Source, job.PublicID, job.Status,
		job.Counters.Found, job.Counters.Inserted, job.Counters.Updated,
		job.Counters.Skipped, job.Counters.Failed, job.LastPage)
}

func init() {
	scrapeCmd.Flags().Int("max-pages", 0, "cap the number of pages fetched (0 = no cap)")
	scrapeCmd.Flags().Bool("resume", false, "continue from the previous run's cursor")
	rootCmd.AddCommand(scrapeCmd)
}
