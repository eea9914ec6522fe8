package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uzbuild/market-intel/internal/feed"
	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
	"github.com/uzbuild/market-intel/internal/rating"
	"github.com/uzbuild/market-intel/internal/resilience"
)

// RunReyting executes one full run against the rating feed: page the
// company listings for every configured type, then pull the detailed
// indicator breakdown for the top-rated companies and feed it through
// the rating ingestor.
func (r *Runner) RunReyting(ctx context.Context, opts RunOptions) (*model.ScrapeJob, error) {
	if _, err := r.jobs.RecoverStale(ctx, model.SourceReyting, r.cfg.Scrape.StaleJobTimeout); err != nil {
		return nil, err
	}

	prevCursor := 0
	if opts.Resume {
		prev, err := r.jobs.List(ctx, model.SourceReyting, 1)
		if err != nil {
			return nil, err
		}
		if len(prev) > 0 {
			prevCursor = prev[0].LastPage
		}
	}

	job, err := r.jobs.Start(ctx, model.SourceReyting)
	if err != nil {
		return nil, err
	}

	var counters model.Counters
	cursor := prevCursor
	dirty := map[string]bool{}

	runErr := r.scrapeListings(ctx, job.ID, opts, prevCursor, &counters, &cursor, dirty)
	if runErr == nil {
		runErr = r.scrapeDetails(ctx, job.ID, &counters, cursor, dirty)
	}

	if err := r.recomputeDirty(ctx, dirty); err != nil {
		r.log.Error("aggregate recompute after run failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	status, errSummary := finishStatus(runErr, counters)
	if err := r.jobs.Finish(ctx, job.ID, status, counters, cursor, errSummary); err != nil {
		return nil, err
	}

	job.Status = status
	job.Counters = counters
	job.LastPage = cursor
	job.ErrorSummary = errSummary
	return job, runErr
}

// scrapeListings pages every configured company-type listing in
// sequence, folding each row into the registry and its summary fields.
// On resume only the first type is fast-forwarded past the previous
// run's cursor; later types restart from page 1, which at worst
// repeats idempotent upserts.
func (r *Runner) scrapeListings(ctx context.Context, jobID int64, opts RunOptions, prevCursor int, counters *model.Counters, cursor *int, dirty map[string]bool) error {
	retryCfg := r.retryConfig("reyting", "fetch_listing")

	for i, src := range r.reytings {
		totalPages, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (int, error) {
			return src.TotalPages(ctx)
		})
		if err != nil {
			return err
		}

		start := r.listingStartPage(i, prevCursor, opts)
		lastPage := clampPages(totalPages, start, opts.MaxPages)
		for page := start; page <= lastPage; page++ {
			p, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*feed.Page, error) {
				return src.FetchPage(ctx, page)
			})
			if err != nil {
				// Cursor stays at the last fully processed page.
				return eris.Wrapf(err, "pipeline: listing page %d failed", page)
			}

			r.applyListingPage(ctx, p, counters, dirty)

			*cursor = page
			if err := r.jobs.Flush(ctx, jobID, *counters, *cursor); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyListingPage folds one listing page into the registry. Foreign
// registrations lack a nine-digit STIR and fail identifier validation.
func (r *Runner) applyListingPage(ctx context.Context, p *feed.Page, counters *model.Counters, dirty map[string]bool) {
	for _, rec := range p.Records {
		counters.Found++

		row, err := normalize.NormalizeRatingListing(rec)
		if err != nil {
			counters.Failed++
			continue
		}
		if !normalize.IsValidSTIR(row.STIR) {
			counters.Failed++
			continue
		}

		stir, err := r.resolver.Resolve(ctx, row.STIR, row.Name, model.SourceReyting, row.Region)
		if err != nil {
			r.log.Error("company resolve failed",
				zap.String("stir", row.STIR), zap.Error(err))
			counters.Failed++
			continue
		}

		err = r.resolver.UpdateRatingSummary(ctx, stir, model.ScoreSummary{
			Letter: row.Letter,
			Score:  row.Score,
		})
		if err != nil {
			r.log.Error("rating summary update failed",
				zap.String("stir", stir), zap.Error(err))
			counters.Failed++
			continue
		}

		dirty[stir] = true
		counters.Inserted++
	}
}

// scrapeDetails pulls the per-indicator breakdown for the top-rated
// companies and runs each through the ingestor. Fetches run
// concurrently; a failed company counts against the run but does not
// stop it.
func (r *Runner) scrapeDetails(ctx context.Context, jobID int64, counters *model.Counters, cursor int, dirty map[string]bool) error {
	if len(r.reytings) == 0 || r.cfg.Reyting.DetailLimit <= 0 {
		return nil
	}

	stirs, err := r.topRatedSTIRs(ctx, r.cfg.Reyting.DetailLimit)
	if err != nil {
		return err
	}
	if len(stirs) == 0 {
		return nil
	}
	r.log.Info("fetching rating details", zap.Int("companies", len(stirs)))

	// Details come from the general construction listing type.
	src := r.reytings[0]
	retryCfg := r.retryConfig("reyting", "fetch_detail")
	today := dateOnly(time.Now().UTC())

	concurrency := r.cfg.Reyting.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, stir := range stirs {
		g.Go(func() error {
			detail, err := resilience.DoVal(gctx, retryCfg, func(ctx context.Context) (*feed.Detail, error) {
				return src.FetchDetail(ctx, stir)
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				r.log.Error("detail fetch failed",
					zap.String("stir", stir), zap.Error(err))
				counters.Failed++
				return nil
			}
			if detail == nil {
				counters.Skipped++
				return nil
			}

			employees, specialists := rating.StaffCounts(detail.Observations)
			res, err := r.ingestor.Ingest(gctx, stir, today, detail.Observations, model.ScoreSummary{
				EmployeeCount:   employees,
				SpecialistCount: specialists,
			}, detail.RawPayload)
			if err != nil {
				r.log.Error("rating ingest failed",
					zap.String("stir", stir), zap.Error(err))
				counters.Failed++
				return nil
			}

			dirty[stir] = true
			counters.Updated++
			if res.SnapshotWritten {
				r.log.Debug("rating snapshot written", zap.String("stir", stir))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return r.jobs.Flush(ctx, jobID, *counters, cursor)
}

// topRatedSTIRs selects the companies worth a detail fetch, best
// scores first.
func (r *Runner) topRatedSTIRs(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT stir FROM companies
		 WHERE rating_score IS NOT NULL
		 ORDER BY rating_score DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: select top rated companies")
	}
	defer rows.Close()

	var stirs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan stir")
		}
		stirs = append(stirs, s)
	}
	return stirs, rows.Err()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
