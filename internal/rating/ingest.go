package rating

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/db"
	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/registry"
)

// Observation is one indicator value scraped from a company's rating
// detail page.
type Observation struct {
	CriterionCode string
	CriterionName string
	CategoryCode  string
	SourceAgency  string
	RawValue      string
	Earned        *float64
	Max           *float64
}

// Result reports what one ingestion pass did.
type Result struct {
	Indicators      int
	SnapshotWritten bool
}

// Ingestor persists per-indicator rating rows and maintains the
// snapshot history for each company.
type Ingestor struct {
	pool     db.Pool
	catalog  *Catalog
	resolver *registry.Resolver
	log      *zap.Logger
}

// NewIngestor creates an Ingestor backed by the given pool.
func NewIngestor(pool db.Pool, catalog *Catalog, resolver *registry.Resolver) *Ingestor {
	return &Ingestor{
		pool:     pool,
		catalog:  catalog,
		resolver: resolver,
		log:      zap.L().With(zap.String("component", "rating.ingestor")),
	}
}

// Ingest stores one rating observation set for (company, date).
// Indicator rows upsert with last-write-wins semantics, so re-running
// the same scrape is idempotent. A snapshot row is written only when
// the consolidated view differs from the company's most recent prior
// snapshot, or when no prior snapshot exists. The company's rating
// summary fields are refreshed unconditionally.
func (g *Ingestor) Ingest(ctx context.Context, stir string, date time.Time, obs []Observation, summary model.ScoreSummary, rawPayload []byte) (*Result, error) {
	res := &Result{}

	for _, o := range obs {
		critID, err := g.catalog.EnsureCriterion(ctx,
			o.CriterionCode, o.CriterionName, o.CategoryCode, o.SourceAgency, o.Max,
		)
		if err != nil {
			return res, err
		}

		_, err = g.pool.Exec(ctx, `
			INSERT INTO company_ratings
				(company_stir, criterion_id, raw_value, earned_points, max_points, rating_date)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
			ON CONFLICT (company_stir, criterion_id, rating_date) DO UPDATE SET
				raw_value     = EXCLUDED.raw_value,
				earned_points = EXCLUDED.earned_points,
				max_points    = EXCLUDED.max_points,
				scraped_at    = now()`,
			stir, critID, o.RawValue, o.Earned, o.Max, date,
		)
		if err != nil {
			return res, eris.Wrapf(err, "rating: upsert indicator %s for %s", o.CriterionCode, stir)
		}
		res.Indicators++
	}

	view, err := buildConsolidated(ctx, g.pool, stir, date)
	if err != nil {
		return res, err
	}

	prior, err := latestPriorSnapshot(ctx, g.pool, stir, date)
	if err != nil {
		return res, err
	}

	if prior == nil || !view.Equal(prior) {
		if err := writeSnapshot(ctx, g.pool, stir, date, view, rawPayload); err != nil {
			return res, err
		}
		res.SnapshotWritten = true
	} else {
		g.log.Debug("rating unchanged, snapshot skipped",
			zap.String("stir", stir), zap.Time("rating_date", date))
	}

	if err := g.resolver.UpdateRatingSummary(ctx, stir, summary); err != nil {
		return res, err
	}
	return res, nil
}

// Staff-count indicator codes published by the labor ministry feed.
const (
	codeTotalWorkers = "mehnat_total_workers"
	codeEngineers    = "mehnat_engineers"
)

// StaffCounts pulls employee and specialist headcounts out of the
// observation set when the labor indicators are present.
func StaffCounts(obs []Observation) (employees, specialists *int) {
	for _, o := range obs {
		var target **int
		switch o.CriterionCode {
		case codeTotalWorkers:
			target = &employees
		case codeEngineers:
			target = &specialists
		default:
			continue
		}
		if v, ok := observationValue(o); ok {
			n := int(v)
			*target = &n
		}
	}
	return employees, specialists
}

func observationValue(o Observation) (float64, bool) {
	if o.Earned != nil {
		return *o.Earned, true
	}
	if o.RawValue == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(o.RawValue, " ", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
