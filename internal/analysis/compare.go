package analysis

import (
	"context"

	"github.com/rotisserie/eris"
)

// CompareRow is one company's summary line in a head-to-head
// comparison.
type CompareRow struct {
	CanonicalName   string
	STIR            string
	RatingLetter    string
	RatingScore     *float64
	TotalWins       int64
	TotalValue      float64
	AvgDiscount     float64
	EmployeeCount   *int
	SpecialistCount *int
	Region          string
}

// CompareCategoryRow is one (company, category) score pair in a
// comparison.
type CompareCategoryRow struct {
	STIR          string
	CanonicalName string
	Category      string
	Earned        float64
	Max           float64
}

// SharedCustomer is a procuring customer served by more than one of
// the compared companies.
type SharedCustomer struct {
	CustomerName string
	Companies    int64
	Tenders      int64
	Volume       float64
}

// Comparison is the head-to-head report for two or more companies.
type Comparison struct {
	Summary         []CompareRow
	Categories      []CompareCategoryRow
	SharedCustomers []SharedCustomer
}

// Compare builds a side-by-side report for the given STIRs.
func (a *Analyzer) Compare(ctx context.Context, stirs []string) (*Comparison, error) {
	if len(stirs) < 2 {
		return nil, eris.New("analysis: comparison needs at least two companies")
	}

	c := &Comparison{}

	rows, err := a.pool.Query(ctx, `
		SELECT canonical_name, stir, COALESCE(rating_letter, ''), rating_score,
		       total_wins, total_contract_value, avg_discount_pct,
		       employee_count, specialist_count, COALESCE(region, '')
		FROM companies
		WHERE stir = ANY($1::varchar[])
		ORDER BY total_wins DESC`,
		stirs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: comparison summary")
	}
	defer rows.Close()

	for rows.Next() {
		var r CompareRow
		err := rows.Scan(
			&r.CanonicalName, &r.STIR, &r.RatingLetter, &r.RatingScore,
			&r.TotalWins, &r.TotalValue, &r.AvgDiscount,
			&r.EmployeeCount, &r.SpecialistCount, &r.Region,
		)
		if err != nil {
			return nil, eris.Wrap(err, "analysis: scan comparison row")
		}
		c.Summary = append(c.Summary, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "analysis: iterate comparison rows")
	}

	c.Categories, err = a.compareCategories(ctx, stirs)
	if err != nil {
		return nil, err
	}
	c.SharedCustomers, err = a.sharedCustomers(ctx, stirs)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *Analyzer) compareCategories(ctx context.Context, stirs []string) ([]CompareCategoryRow, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT r.company_stir, c.canonical_name, cat.name_ru,
		       COALESCE(ROUND(SUM(r.earned_points), 2), 0),
		       COALESCE(ROUND(SUM(r.max_points), 2), 0)
		FROM company_ratings r
		JOIN rating_criteria cr ON r.criterion_id = cr.id
		JOIN rating_categories cat ON cr.category_id = cat.id
		JOIN companies c ON r.company_stir = c.stir
		WHERE r.company_stir = ANY($1::varchar[])
		GROUP BY r.company_stir, c.canonical_name, cat.id, cat.name_ru, cat.display_order
		ORDER BY cat.display_order, r.company_stir`,
		stirs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: comparison categories")
	}
	defer rows.Close()

	var out []CompareCategoryRow
	for rows.Next() {
		var r CompareCategoryRow
		if err := rows.Scan(&r.STIR, &r.CanonicalName, &r.Category, &r.Earned, &r.Max); err != nil {
			return nil, eris.Wrap(err, "analysis: scan category comparison row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (a *Analyzer) sharedCustomers(ctx context.Context, stirs []string) ([]SharedCustomer, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT customer_name,
		       COUNT(DISTINCT provider_stir),
		       COUNT(*),
		       COALESCE(SUM(deal_cost), 0)
		FROM tender_results
		WHERE provider_stir = ANY($1::varchar[])
		GROUP BY customer_name
		HAVING COUNT(DISTINCT provider_stir) > 1
		ORDER BY COUNT(*) DESC
		LIMIT 20`,
		stirs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: shared customers")
	}
	defer rows.Close()

	var out []SharedCustomer
	for rows.Next() {
		var s SharedCustomer
		if err := rows.Scan(&s.CustomerName, &s.Companies, &s.Tenders, &s.Volume); err != nil {
			return nil, eris.Wrap(err, "analysis: scan shared customer row")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
