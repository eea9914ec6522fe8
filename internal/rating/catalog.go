// Package rating ingests per-indicator company ratings and maintains
// change-aware historical snapshots.
package rating

import (
	_ "embed"

	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/uzbuild/market-intel/internal/db"
)

//go:embed seed/criteria.yaml
var criteriaSeed []byte

// seedFile mirrors seed/criteria.yaml.
type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
}

type seedCategory struct {
	Code         string         `yaml:"code"`
	NameUz       string         `yaml:"name_uz"`
	NameRu       string         `yaml:"name_ru"`
	DisplayOrder int            `yaml:"display_order"`
	Criteria     []seedCriteria `yaml:"criteria"`
}

type seedCriteria struct {
	Code         string   `yaml:"code"`
	NameUz       string   `yaml:"name_uz"`
	NameRu       string   `yaml:"name_ru"`
	SourceAgency string   `yaml:"source_agency"`
	MaxPoints    *float64 `yaml:"max_points"`
}

// Catalog manages the rating reference data: the six categories and
// their scoring criteria. The set is data-driven; indicators unseen in
// the seed are created on first observation.
type Catalog struct {
	pool db.Pool
}

// NewCatalog creates a Catalog backed by the given pool.
func NewCatalog(pool db.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Seed loads the embedded category/criteria reference data. Existing
// rows are left untouched apart from name backfills, so re-seeding is
// safe.
func (c *Catalog) Seed(ctx context.Context) (int, error) {
	var f seedFile
	if err := yaml.Unmarshal(criteriaSeed, &f); err != nil {
		return 0, eris.Wrap(err, "rating: parse criteria seed")
	}

	log := zap.L().With(zap.String("component", "rating.catalog"))
	seeded := 0

	for _, cat := range f.Categories {
		var catID int
		err := c.pool.QueryRow(ctx, `
			INSERT INTO rating_categories (code, name_uz, name_ru, display_order)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (code) DO UPDATE SET
				name_uz       = EXCLUDED.name_uz,
				name_ru       = EXCLUDED.name_ru,
				display_order = EXCLUDED.display_order
			RETURNING id`,
			cat.Code, cat.NameUz, cat.NameRu, cat.DisplayOrder,
		).Scan(&catID)
		if err != nil {
			return seeded, eris.Wrapf(err, "rating: seed category %s", cat.Code)
		}

		for i, cr := range cat.Criteria {
			_, err := c.pool.Exec(ctx, `
				INSERT INTO rating_criteria
					(category_id, code, name_uz, name_ru, source_agency, max_points, display_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (code) DO UPDATE SET
					name_uz       = COALESCE(NULLIF(EXCLUDED.name_uz, ''), rating_criteria.name_uz),
					name_ru       = COALESCE(NULLIF(EXCLUDED.name_ru, ''), rating_criteria.name_ru),
					max_points    = COALESCE(EXCLUDED.max_points, rating_criteria.max_points),
					display_order = EXCLUDED.display_order`,
				catID, cr.Code, cr.NameUz, cr.NameRu, cr.SourceAgency, cr.MaxPoints, i+1,
			)
			if err != nil {
				return seeded, eris.Wrapf(err, "rating: seed criterion %s", cr.Code)
			}
			seeded++
		}
	}

	log.Info("criteria catalog seeded", zap.Int("criteria", seeded))
	return seeded, nil
}

// EnsureCriterion returns the id for a criterion code, creating the row
// under the given category when the indicator has not been seen before.
func (c *Catalog) EnsureCriterion(ctx context.Context, code, name, categoryCode, sourceAgency string, maxPoints *float64) (int, error) {
	if code == "" {
		return 0, eris.New("rating: empty criterion code")
	}

	var id int
	err := c.pool.QueryRow(ctx,
		`SELECT id FROM rating_criteria WHERE code = $1`, code,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isNoRows(err) {
		return 0, eris.Wrapf(err, "rating: look up criterion %s", code)
	}

	// Unknown indicator: attach it to its category, defaulting to the
	// competitiveness bucket the way the source does.
	var catID int
	err = c.pool.QueryRow(ctx,
		`SELECT id FROM rating_categories WHERE code = $1`, categoryCode,
	).Scan(&catID)
	if err != nil {
		if !isNoRows(err) {
			return 0, eris.Wrapf(err, "rating: look up category %s", categoryCode)
		}
		err = c.pool.QueryRow(ctx,
			`SELECT id FROM rating_categories WHERE code = 'competitiveness'`,
		).Scan(&catID)
		if err != nil {
			return 0, eris.Wrap(err, "rating: fallback category missing")
		}
	}

	err = c.pool.QueryRow(ctx, `
		INSERT INTO rating_criteria (category_id, code, name_uz, name_ru, source_agency, max_points)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			name_ru = COALESCE(NULLIF(EXCLUDED.name_ru, ''), rating_criteria.name_ru)
		RETURNING id`,
		catID, code, name, name, sourceAgency, maxPoints,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "rating: create criterion %s", code)
	}
	return id, nil
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) || err.Error() == "no rows in result set"
}
