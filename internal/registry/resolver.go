// Package registry owns the canonical company registry: identity
// resolution by STIR and the field-group writes on company rows.
package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/db"
	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
)

// Resolver maps a (STIR, observed name) pair to the canonical company
// row, creating it on first sighting.
type Resolver struct {
	pool db.Pool
}

// NewResolver creates a Resolver backed by the given pool.
func NewResolver(pool db.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// resolveSQL inserts a company or folds a new sighting into the
// existing row. The canonical name is fixed at creation; later
// sightings only grow the raw_names set. Region fills in only when
// previously unset, and source promotes to 'both' once the company has
// been seen from the second feed.
const resolveSQL = `
	INSERT INTO companies (stir, canonical_name, raw_names, region, source)
	VALUES ($1, $2, jsonb_build_array($3::text), NULLIF($4, ''), $5)
	ON CONFLICT (stir) DO UPDATE SET
		raw_names = CASE
			WHEN NOT companies.raw_names @> jsonb_build_array($3::text)
			THEN companies.raw_names || jsonb_build_array($3::text)
			ELSE companies.raw_names
		END,
		region = COALESCE(companies.region, EXCLUDED.region),
		source = CASE
			WHEN companies.source <> EXCLUDED.source THEN 'both'
			ELSE companies.source
		END,
		updated_at = now()`

// Resolve validates the STIR and upserts the company sighting. The
// returned STIR is the validated identifier. A malformed STIR fails
// with normalize.ErrInvalidSTIR so callers can count it as a
// validation failure.
func (r *Resolver) Resolve(ctx context.Context, stir, rawName string, source model.Source, region string) (string, error) {
	valid, err := normalize.ValidateSTIR(stir)
	if err != nil {
		return "", err
	}

	canonical := normalize.CleanCompanyName(rawName)
	if canonical == "" {
		canonical = valid
	}

	if _, err := r.pool.Exec(ctx, resolveSQL,
		valid, canonical, rawName, region, string(source),
	); err != nil {
		return "", eris.Wrapf(err, "registry: resolve %s", valid)
	}

	return valid, nil
}

// Exists reports whether a company row exists for the STIR.
func (r *Resolver) Exists(ctx context.Context, stir string) (bool, error) {
	var found bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM companies WHERE stir = $1)`, stir,
	).Scan(&found)
	if err != nil {
		return false, eris.Wrapf(err, "registry: exists %s", stir)
	}
	return found, nil
}

// UpdateRatingSummary writes the rating summary field group. These
// fields are owned by the rating feed and updated unconditionally on
// each ingestion pass; COALESCE keeps prior values when the new pass
// has no observation for a field.
func (r *Resolver) UpdateRatingSummary(ctx context.Context, stir string, s model.ScoreSummary) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE companies SET
			rating_letter     = COALESCE(NULLIF($2, ''), rating_letter),
			rating_score      = COALESCE($3, rating_score),
			employee_count    = COALESCE($4, employee_count),
			specialist_count  = COALESCE($5, specialist_count),
			rating_fetched_at = now(),
			updated_at        = now()
		WHERE stir = $1`,
		stir, s.Letter, s.Score, s.EmployeeCount, s.SpecialistCount,
	)
	if err != nil {
		return eris.Wrapf(err, "registry: update rating summary %s", stir)
	}
	return nil
}

// Get loads a full company row.
func (r *Resolver) Get(ctx context.Context, stir string) (*model.Company, error) {
	var (
		c       model.Company
		region  *string
		letter  *string
		rawJSON []byte
		regJSON []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT stir, canonical_name, raw_names, region, source,
		       rating_letter, rating_score, employee_count, specialist_count,
		       rating_fetched_at, total_wins, total_contract_value,
		       avg_discount_pct, first_tender_date, last_tender_date,
		       active_regions, company_type, created_at, updated_at
		FROM companies WHERE stir = $1`,
		stir,
	).Scan(
		&c.STIR, &c.CanonicalName, &rawJSON, &region, &c.Source,
		&letter, &c.RatingScore, &c.EmployeeCount, &c.SpecialistCount,
		&c.RatingFetchedAt, &c.TotalWins, &c.TotalContractValue,
		&c.AvgDiscountPct, &c.FirstTenderDate, &c.LastTenderDate,
		&regJSON, &c.CompanyType, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: get %s", stir)
	}

	if region != nil {
		c.Region = *region
	}
	if letter != nil {
		c.RatingLetter = *letter
	}
	if err := unmarshalStrings(rawJSON, &c.RawNames); err != nil {
		zap.L().Warn("registry: bad raw_names payload", zap.String("stir", stir), zap.Error(err))
	}
	if err := unmarshalStrings(regJSON, &c.ActiveRegions); err != nil {
		zap.L().Warn("registry: bad active_regions payload", zap.String("stir", stir), zap.Error(err))
	}

	return &c, nil
}
