package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uzbuild/market-intel/internal/feed"
	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
	"github.com/uzbuild/market-intel/internal/resilience"
	"github.com/uzbuild/market-intel/internal/tender"
)

// RunETender executes one full run against the tender-results feed:
// page through the deals list, keep construction deals, resolve the
// winning companies, upsert the tender rows, then recompute the
// aggregates of every company touched.
func (r *Runner) RunETender(ctx context.Context, opts RunOptions) (*model.ScrapeJob, error) {
	if _, err := r.jobs.RecoverStale(ctx, model.SourceETender, r.cfg.Scrape.StaleJobTimeout); err != nil {
		return nil, err
	}

	prevCursor := 0
	if opts.Resume {
		prev, err := r.jobs.List(ctx, model.SourceETender, 1)
		if err != nil {
			return nil, err
		}
		if len(prev) > 0 {
			prevCursor = prev[0].LastPage
		}
	}

	job, err := r.jobs.Start(ctx, model.SourceETender)
	if err != nil {
		return nil, err
	}

	var counters model.Counters
	cursor := prevCursor
	dirty := map[string]bool{}

	runErr := r.scrapeETender(ctx, job.ID, opts, prevCursor, &counters, &cursor, dirty)

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

// scrapeETender runs the page loop. Pages are fetched in bounded
// concurrent batches but applied strictly in page order, and the
// cursor is flushed after each fully processed batch.
func (r *Runner) scrapeETender(ctx context.Context, jobID int64, opts RunOptions, prevCursor int, counters *model.Counters, cursor *int, dirty map[string]bool) error {
	retryCfg := r.retryConfig("etender", "fetch_page")

	totalPages, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (int, error) {
		return r.etender.TotalPages(ctx)
	})
	if err != nil {
		return err
	}

	start := r.startPage(prevCursor, opts)
	lastPage := clampPages(totalPages, start, opts.MaxPages)
	r.log.Info("tender scrape starting",
		zap.Int("start_page", start),
		zap.Int("last_page", lastPage),
		zap.Int("total_pages", totalPages))

	concurrency := r.cfg.ETender.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	emptyStreak := 0
	maxStreak := r.cfg.Scrape.EmptyPageStreak
	if maxStreak <= 0 {
		maxStreak = 3
	}

	for page := start; lastPage == 0 || page <= lastPage; page += concurrency {
		batch := concurrency
		if lastPage > 0 && page+batch-1 > lastPage {
			batch = lastPage - page + 1
		}

		pages := make([]*feed.Page, batch)
		fetchErrs := make([]error, batch)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < batch; i++ {
			g.Go(func() error {
				p, err := resilience.DoVal(gctx, retryCfg, func(ctx context.Context) (*feed.Page, error) {
					return r.etender.FetchPage(ctx, page+i)
				})
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					fetchErrs[i] = err
					return nil
				}
				pages[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// Apply in page order. A page that exhausted its retries fails
		// the run, with the cursor left at the last successful page.
		allEmpty := true
		for i, p := range pages {
			if p == nil {
				*cursor = page + i - 1
				if ferr := r.jobs.Flush(ctx, jobID, *counters, *cursor); ferr != nil {
					return ferr
				}
				return eris.Wrapf(fetchErrs[i], "pipeline: page %d failed", page+i)
			}
			if len(p.Records) > 0 {
				allEmpty = false
			}
			r.applyTenderPage(ctx, p, counters, dirty)
		}

		*cursor = page + batch - 1
		if err := r.jobs.Flush(ctx, jobID, *counters, *cursor); err != nil {
			return err
		}

		if allEmpty {
			emptyStreak++
			if emptyStreak >= maxStreak {
				r.log.Info("consecutive empty pages, stopping",
					zap.Int("streak", emptyStreak))
				return nil
			}
		} else {
			emptyStreak = 0
		}
	}
	return nil
}

// applyTenderPage routes one page of raw deal records: normalize,
// filter, resolve the provider, upsert the tender row.
func (r *Runner) applyTenderPage(ctx context.Context, p *feed.Page, counters *model.Counters, dirty map[string]bool) {
	for _, rec := range p.Records {
		counters.Found++

		t, err := normalize.NormalizeTender(rec, r.regions)
		if err != nil {
			r.log.Warn("malformed deal record", zap.Int("page", p.Number), zap.Error(err))
			counters.Failed++
			continue
		}

		if !r.filter.IsConstruction(t.Description, t.CustomerName, t.ProviderName) {
			counters.Skipped++
			continue
		}

		if normalize.IsValidSTIR(t.ProviderSTIR) {
			stir, err := r.resolver.Resolve(ctx, t.ProviderSTIR, t.ProviderName, model.SourceETender, t.Region)
			if err != nil {
				r.log.Error("company resolve failed",
					zap.String("stir", t.ProviderSTIR), zap.Error(err))
				counters.Failed++
				continue
			}
			dirty[stir] = true
		}

		outcome, err := r.tenders.Upsert(ctx, t)
		if err != nil {
			r.log.Error("tender upsert failed",
				zap.Int64("deal_id", t.DealID), zap.Error(err))
			counters.Failed++
			continue
		}
		switch outcome {
		case tender.OutcomeInserted:
			counters.Inserted++
		default:
			counters.Updated++
		}
	}
}

// recomputeDirty refreshes aggregates for every company a run touched.
func (r *Runner) recomputeDirty(ctx context.Context, dirty map[string]bool) error {
	if len(dirty) == 0 {
		return nil
	}
	stirs := make([]string, 0, len(dirty))
	for s := range dirty {
		stirs = append(stirs, s)
	}
	r.log.Info("recomputing aggregates", zap.Int("companies", len(stirs)))
	return r.agg.RecomputeMany(ctx, stirs, r.cfg.Enrich.Concurrency)
}
