package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/uzbuild/market-intel/internal/joblog"
	"github.com/uzbuild/market-intel/internal/model"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect scrape run history",
	Long:  "Commands for listing and viewing scrape runs.",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scrape runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := joblog.New(pool).List(ctx, model.Source(source), limit)
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tFOUND\tINSERTED\tUPDATED\tSKIPPED\tFAILED\tPAGE\tSTARTED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
				j.PublicID, j.Source, j.Status,
				j.Counters.Found, j.Counters.Inserted, j.Counters.Updated,
				j.Counters.Skipped, j.Counters.Failed,
				j.LastPage, j.StartedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <public-id>",
	Short: "Show one scrape run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := uuid.Parse(args[0])
		if err != nil {
			return eris.Wrapf(err, "jobs show: bad run id %q", args[0])
		}

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		job, err := joblog.New(pool).Get(ctx, id)
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsLastCmd = &cobra.Command{
	Use:   "last <source>",
	Short: "Show the most recent completed run for a source as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		job, err := joblog.New(pool).LastSuccess(ctx, model.Source(args[0]))
		if err != nil {
			return eris.Wrap(err, "jobs last")
		}
		if job == nil {
			fmt.Fprintf(os.Stderr, "No completed runs for %s.\n", args[0])
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	jobsListCmd.Flags().String("source", "", "filter by source (etender, reyting)")
	jobsListCmd.Flags().Int("limit", 20, "max runs to show")
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsLastCmd)
	rootCmd.AddCommand(jobsCmd)
}
