package rating

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/uzbuild/market-intel/internal/db"
)

// CategoryTotal is one category's consolidated score for a date.
type CategoryTotal struct {
	Code   string  `json:"code"`
	Earned float64 `json:"earned"`
	Max    float64 `json:"max"`
}

// IndicatorLine is one indicator's consolidated value for a date.
type IndicatorLine struct {
	CriterionCode string   `json:"criterion_code"`
	RawValue      string   `json:"raw_value,omitempty"`
	Earned        *float64 `json:"earned,omitempty"`
	Max           *float64 `json:"max,omitempty"`
}

// Consolidated is the point-in-time rating state compared against the
// prior snapshot. Both slices are ordered by display order so equality
// is positional.
type Consolidated struct {
	Categories []CategoryTotal `json:"categories"`
	Indicators []IndicatorLine `json:"indicators"`
}

// Equal compares two consolidated views field by field.
func (c *Consolidated) Equal(o *Consolidated) bool {
	if o == nil {
		return false
	}
	if len(c.Categories) != len(o.Categories) || len(c.Indicators) != len(o.Indicators) {
		return false
	}
	for i, ct := range c.Categories {
		if ct != o.Categories[i] {
			return false
		}
	}
	for i, in := range c.Indicators {
		oi := o.Indicators[i]
		if in.CriterionCode != oi.CriterionCode || in.RawValue != oi.RawValue {
			return false
		}
		if !floatPtrEqual(in.Earned, oi.Earned) || !floatPtrEqual(in.Max, oi.Max) {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// buildConsolidated assembles the consolidated view for a
// (company, date) from the persisted EAV rows.
func buildConsolidated(ctx context.Context, pool db.Pool, stir string, date time.Time) (*Consolidated, error) {
	rows, err := pool.Query(ctx, `
		SELECT cat.code, cr.code, r.raw_value, r.earned_points, r.max_points
		FROM company_ratings r
		JOIN rating_criteria cr ON cr.id = r.criterion_id
		JOIN rating_categories cat ON cat.id = cr.category_id
		WHERE r.company_stir = $1 AND r.rating_date = $2
		ORDER BY cat.display_order, cr.display_order, cr.code`,
		stir, date,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "rating: load indicator rows for %s", stir)
	}
	defer rows.Close()

	view := &Consolidated{}
	totals := map[string]*CategoryTotal{}
	var order []string

	for rows.Next() {
		var (
			catCode, crCode string
			rawValue        *string
			earned, max     *float64
		)
		if err := rows.Scan(&catCode, &crCode, &rawValue, &earned, &max); err != nil {
			return nil, eris.Wrap(err, "rating: scan indicator row")
		}

		line := IndicatorLine{CriterionCode: crCode, Earned: earned, Max: max}
		if rawValue != nil {
			line.RawValue = *rawValue
		}
		view.Indicators = append(view.Indicators, line)

		t, ok := totals[catCode]
		if !ok {
			t = &CategoryTotal{Code: catCode}
			totals[catCode] = t
			order = append(order, catCode)
		}
		if earned != nil {
			t.Earned += *earned
		}
		if max != nil {
			t.Max += *max
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "rating: iterate indicator rows")
	}

	for _, code := range order {
		view.Categories = append(view.Categories, *totals[code])
	}
	return view, nil
}

// latestPriorSnapshot loads the most recent snapshot strictly before
// the given date. Returns nil when the company has no prior snapshot.
func latestPriorSnapshot(ctx context.Context, pool db.Pool, stir string, before time.Time) (*Consolidated, error) {
	var catJSON, indJSON []byte
	err := pool.QueryRow(ctx, `
		SELECT categories_json, indicators_json
		FROM company_rating_snapshots
		WHERE company_stir = $1 AND rating_date < $2
		ORDER BY rating_date DESC
		LIMIT 1`,
		stir, before,
	).Scan(&catJSON, &indJSON)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "rating: load prior snapshot for %s", stir)
	}

	var view Consolidated
	if err := json.Unmarshal(catJSON, &view.Categories); err != nil {
		return nil, eris.Wrap(err, "rating: decode prior categories")
	}
	if err := json.Unmarshal(indJSON, &view.Indicators); err != nil {
		return nil, eris.Wrap(err, "rating: decode prior indicators")
	}
	return &view, nil
}

// writeSnapshot inserts or overwrites the snapshot for (company, date).
// Re-ingesting the same date overwrites, never duplicates.
func writeSnapshot(ctx context.Context, pool db.Pool, stir string, date time.Time, view *Consolidated, rawPayload []byte) error {
	catJSON, err := json.Marshal(view.Categories)
	if err != nil {
		return eris.Wrap(err, "rating: encode categories")
	}
	indJSON, err := json.Marshal(view.Indicators)
	if err != nil {
		return eris.Wrap(err, "rating: encode indicators")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO company_rating_snapshots
			(company_stir, rating_date, categories_json, indicators_json, raw_payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_stir, rating_date) DO UPDATE SET
			categories_json = EXCLUDED.categories_json,
			indicators_json = EXCLUDED.indicators_json,
			raw_payload     = EXCLUDED.raw_payload,
			scraped_at      = now()`,
		stir, date, catJSON, indJSON, rawPayload,
	)
	if err != nil {
		return eris.Wrapf(err, "rating: write snapshot for %s", stir)
	}
	return nil
}
