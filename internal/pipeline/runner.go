// Package pipeline orchestrates scrape runs: stale-run recovery, job
// accounting, paged fetching with retries, record normalization and
// routing, and the post-run aggregation pass.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/aggregate"
	"github.com/uzbuild/market-intel/internal/config"
	"github.com/uzbuild/market-intel/internal/db"
	"github.com/uzbuild/market-intel/internal/feed"
	"github.com/uzbuild/market-intel/internal/joblog"
	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
	"github.com/uzbuild/market-intel/internal/rating"
	"github.com/uzbuild/market-intel/internal/registry"
	"github.com/uzbuild/market-intel/internal/resilience"
	"github.com/uzbuild/market-intel/internal/tender"
)

// RunOptions tunes a single scrape run.
type RunOptions struct {
	// MaxPages caps the number of pages fetched. Zero means no cap.
	MaxPages int
	// Resume continues from the previous run's cursor instead of
	// page 1.
	Resume bool
}

// Runner wires the feeds, the registry, and the stores into runnable
// scrape pipelines.
type Runner struct {
	cfg      *config.Config
	pool     db.Pool
	jobs     *joblog.Log
	resolver *registry.Resolver
	tenders  *tender.Upserter
	agg      *aggregate.Aggregator
	ingestor *rating.Ingestor
	filter   *normalize.DealFilter
	regions  *normalize.RegionExtractor
	etender  feed.Source
	reytings []*feed.Reyting
	log      *zap.Logger
}

// NewRunner wires a Runner from configuration.
func NewRunner(cfg *config.Config, pool db.Pool) *Runner {
	catalog := rating.NewCatalog(pool)
	resolver := registry.NewResolver(pool)

	etenderClient := feed.NewClient(feed.ClientOptions{
		UserAgent:  cfg.Scrape.UserAgent,
		Origin:     cfg.ETender.Origin,
		Referer:    cfg.ETender.Origin + "/deals-list",
		Timeout:    time.Duration(cfg.Scrape.HTTPTimeoutSecs) * time.Second,
		RatePerSec: cfg.ETender.RatePerSec,
	})

	reytingClient := feed.NewClient(feed.ClientOptions{
		UserAgent:  cfg.Scrape.UserAgent,
		Origin:     cfg.Reyting.Origin,
		Referer:    cfg.Reyting.Origin + "/",
		Timeout:    time.Duration(cfg.Scrape.HTTPTimeoutSecs) * time.Second,
		RatePerSec: cfg.Reyting.RatePerSec,
	})
	reytings := make([]*feed.Reyting, 0, len(cfg.Reyting.Types))
	for _, t := range cfg.Reyting.Types {
		reytings = append(reytings,
			feed.NewReyting(reytingClient, cfg.Reyting.BaseURL, t, cfg.Reyting.PerPage))
	}

	return &Runner{
		cfg:      cfg,
		pool:     pool,
		jobs:     joblog.New(pool),
		resolver: resolver,
		tenders:  tender.NewUpserter(pool),
		agg:      aggregate.New(pool, aggregate.DefaultThresholds()),
		ingestor: rating.NewIngestor(pool, catalog, resolver),
		filter: normalize.NewDealFilter(
			cfg.Filter.ConstructionKeywords, cfg.Filter.NonConstructionKeywords),
		regions:  normalize.NewRegionExtractor(cfg.Filter.Regions),
		etender:  feed.NewETender(etenderClient, cfg.ETender.BaseURL, cfg.ETender.PageSize),
		reytings: reytings,
		log:      zap.L().With(zap.String("component", "pipeline")),
	}
}

// retryConfig builds the per-request retry policy for a feed
// operation.
func (r *Runner) retryConfig(source, operation string) resilience.Config {
	cfg := resilience.DefaultConfig()
	if r.cfg.Scrape.MaxRetries > 0 {
		cfg.MaxAttempts = r.cfg.Scrape.MaxRetries
	}
	cfg.OnRetry = resilience.Logger(source, operation)
	return cfg
}

// startPage picks the first page of a run. With Resume set, the
// previous run's durable cursor is honored so already recorded pages
// are not refetched.
func (r *Runner) startPage(prev int, opts RunOptions) int {
	if opts.Resume && prev > 0 {
		return prev + 1
	}
	return 1
}

// listingStartPage picks the first page for the i-th listing type of a
// rating run. The durable cursor tracks pages of the type being walked
// when the previous run stopped, so only the first type honors it;
// every later type starts over from page 1.
func (r *Runner) listingStartPage(i, prev int, opts RunOptions) int {
	if i > 0 {
		return 1
	}
	return r.startPage(prev, opts)
}

// clampPages applies the run's page cap on top of the probed total.
// Zero total means page until empty.
func clampPages(total, start, maxPages int) int {
	if maxPages > 0 {
		capped := start + maxPages - 1
		if total == 0 || capped < total {
			return capped
		}
	}
	return total
}

// finishStatus maps a run's outcome onto a terminal job status. A page
// or connection failure fails the run; record-level failures alone
// leave it partial; a deliberate early stop after progress is partial
// rather than failed.
func finishStatus(runErr error, c model.Counters) (model.JobStatus, string) {
	switch {
	case runErr == nil && c.Failed == 0:
		return model.JobSuccess, ""
	case runErr == nil:
		return model.JobPartial, ""
	case errors.Is(runErr, context.Canceled) && c.Found > 0:
		return model.JobPartial, "stopped early"
	default:
		return model.JobFailed, runErr.Error()
	}
}
