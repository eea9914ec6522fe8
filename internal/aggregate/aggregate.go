// Package aggregate recomputes company statistics from persisted
// tender rows. Recompute is a pure function of the row set: running it
// twice with no intervening writes yields identical output.
package aggregate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uzbuild/market-intel/internal/db"
)

// Thresholds drive the deterministic company type classification.
type Thresholds struct {
	MajorWins  int     // wins at or above which a company is a major contractor
	MajorValue float64 // contract volume alternative for major contractor
	MinWins    int     // wins at or above which a company is a contractor
}

// DefaultThresholds returns the classification thresholds in UZS.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MajorWins:  10,
		MajorValue: 50_000_000_000,
		MinWins:    3,
	}
}

// Aggregator performs full-recompute aggregation. Incremental counters
// drift under re-scraping; a full recompute converges to ground truth
// regardless of update order.
type Aggregator struct {
	pool       db.Pool
	thresholds Thresholds
}

// New creates an Aggregator with the given thresholds.
func New(pool db.Pool, t Thresholds) *Aggregator {
	return &Aggregator{pool: pool, thresholds: t}
}

// recomputeSQL rebuilds one company's aggregates and classification in
// a single statement. The advisory lock serializes recompute against
// concurrent tender writes for the same company; hashtext keys the lock
// by STIR.
const recomputeSQL = `
	UPDATE companies c SET
		total_wins           = agg.win_count,
		total_contract_value = agg.total_value,
		avg_discount_pct     = agg.avg_discount,
		first_tender_date    = agg.first_date,
		last_tender_date     = agg.last_date,
		active_regions       = agg.regions,
		company_type         = CASE
			WHEN agg.win_count >= $2 OR agg.total_value >= $3 THEN 'major_contractor'
			WHEN agg.win_count >= $4 THEN 'contractor'
			WHEN agg.win_count >= 1 THEN 'subcontractor'
			WHEN c.rating_score IS NOT NULL THEN 'rated_only'
			ELSE 'unclassified'
		END,
		updated_at           = now()
	FROM (
		SELECT
			COUNT(*)                               AS win_count,
			COALESCE(SUM(deal_cost), 0)            AS total_value,
			COALESCE(ROUND(AVG(
				CASE WHEN start_cost > 0
				     THEN (start_cost - deal_cost) / start_cost * 100
				     ELSE 0
				END
			), 2), 0)                              AS avg_discount,
			MIN(deal_date)                         AS first_date,
			MAX(deal_date)                         AS last_date,
			COALESCE(
				jsonb_agg(DISTINCT region) FILTER (WHERE region IS NOT NULL),
				'[]'::jsonb
			)                                      AS regions
		FROM tender_results
		WHERE provider_stir = $1
	) agg
	WHERE c.stir = $1`

// Recompute rebuilds the aggregates for one company inside a
// transaction holding that company's advisory lock. A STIR with no
// company row is a logged skip, not an error.
func (a *Aggregator) Recompute(ctx context.Context, stir string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "aggregate: begin for %s", stir)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", stir,
	); err != nil {
		return eris.Wrapf(err, "aggregate: lock %s", stir)
	}

	tag, err := tx.Exec(ctx, recomputeSQL,
		stir, a.thresholds.MajorWins, a.thresholds.MajorValue, a.thresholds.MinWins,
	)
	if err != nil {
		return eris.Wrapf(err, "aggregate: recompute %s", stir)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "aggregate: commit %s", stir)
	}

	if tag.RowsAffected() == 0 {
		zap.L().Warn("aggregate: company not in registry, skipped",
			zap.String("stir", stir),
		)
	}
	return nil
}

// RecomputeMany recomputes a set of companies with bounded parallelism.
// Recompute for different companies is fully independent.
func (a *Aggregator) RecomputeMany(ctx context.Context, stirs []string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, stir := range stirs {
		g.Go(func() error {
			return a.Recompute(ctx, stir)
		})
	}

	return g.Wait()
}

// RecomputeAll rebuilds aggregates set-based for every company with
// tender rows, then reclassifies companies without any. Used by the
// enrichment pass after a full scrape.
func (a *Aggregator) RecomputeAll(ctx context.Context) (int64, error) {
	log := zap.L().With(zap.String("component", "aggregate"))

	tag, err := a.pool.Exec(ctx, `
		UPDATE companies c SET
			total_wins           = agg.win_count,
			total_contract_value = agg.total_value,
			avg_discount_pct     = agg.avg_discount,
			first_tender_date    = agg.first_date,
			last_tender_date     = agg.last_date,
			active_regions       = agg.regions,
			company_type         = CASE
				WHEN agg.win_count >= $1 OR agg.total_value >= $2 THEN 'major_contractor'
				WHEN agg.win_count >= $3 THEN 'contractor'
				ELSE 'subcontractor'
			END,
			updated_at           = now()
		FROM (
			SELECT
				provider_stir,
				COUNT(*)                    AS win_count,
				COALESCE(SUM(deal_cost), 0) AS total_value,
				COALESCE(ROUND(AVG(
					CASE WHEN start_cost > 0
					     THEN (start_cost - deal_cost) / start_cost * 100
					     ELSE 0
					END
				), 2), 0)                   AS avg_discount,
				MIN(deal_date)              AS first_date,
				MAX(deal_date)              AS last_date,
				COALESCE(
					jsonb_agg(DISTINCT region) FILTER (WHERE region IS NOT NULL),
					'[]'::jsonb
				)                           AS regions
			FROM tender_results
			WHERE provider_stir IS NOT NULL
			GROUP BY provider_stir
		) agg
		WHERE c.stir = agg.provider_stir`,
		a.thresholds.MajorWins, a.thresholds.MajorValue, a.thresholds.MinWins,
	)
	if err != nil {
		return 0, eris.Wrap(err, "aggregate: recompute all")
	}
	updated := tag.RowsAffected()
	log.Info("aggregates recomputed", zap.Int64("companies", updated))

	// Companies with no tender rows keep zeroed aggregates but still
	// get a classification.
	tag, err = a.pool.Exec(ctx, `
		UPDATE companies c SET
			total_wins           = 0,
			total_contract_value = 0,
			avg_discount_pct     = 0,
			first_tender_date    = NULL,
			last_tender_date     = NULL,
			active_regions       = '[]'::jsonb,
			company_type         = CASE
				WHEN c.rating_score IS NOT NULL THEN 'rated_only'
				ELSE 'unclassified'
			END,
			updated_at           = now()
		WHERE NOT EXISTS (
			SELECT 1 FROM tender_results t WHERE t.provider_stir = c.stir
		)`)
	if err != nil {
		return updated, eris.Wrap(err, "aggregate: reclassify tenderless companies")
	}
	log.Info("tenderless companies reclassified", zap.Int64("companies", tag.RowsAffected()))

	return updated + tag.RowsAffected(), nil
}
