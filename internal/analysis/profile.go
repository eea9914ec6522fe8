package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/registry"
)

// ContractRow is one tender in a company's contract history.
type ContractRow struct {
	DealDate     *time.Time
	CustomerName string
	Description  string
	StartCost    float64
	DealCost     float64
	DiscountPct  float64
	Participants int
}

// CategoryScore is a company's consolidated score in one rating
// category.
type CategoryScore struct {
	Category string
	Earned   float64
	Max      float64
	Percent  float64
}

// IndicatorRow is one scored indicator in a company's rating
// breakdown.
type IndicatorRow struct {
	Category string
	Name     string
	RawValue string
	Earned   *float64
	Max      *float64
}

// Profile is the deep-dive report for one company.
type Profile struct {
	Company         *model.Company
	TopContracts    []ContractRow
	RatingBreakdown []CategoryScore
	Indicators      []IndicatorRow
	MonthlyActivity []MonthStat
	TopCustomers    []CustomerStat
}

// CompanyProfile assembles the full profile card: registry row, the
// largest contracts, the rating breakdown, indicator detail, and the
// trailing-year activity pattern.
func (a *Analyzer) CompanyProfile(ctx context.Context, stir string) (*Profile, error) {
	company, err := registry.NewResolver(a.pool).Get(ctx, stir)
	if err != nil {
		return nil, err
	}
	p := &Profile{Company: company}

	p.TopContracts, err = a.topContracts(ctx, stir, 10)
	if err != nil {
		return nil, err
	}
	p.RatingBreakdown, err = a.ratingBreakdown(ctx, stir)
	if err != nil {
		return nil, err
	}
	p.Indicators, err = a.indicators(ctx, stir)
	if err != nil {
		return nil, err
	}
	p.MonthlyActivity, err = a.companyMonthly(ctx, stir, 12)
	if err != nil {
		return nil, err
	}
	p.TopCustomers, err = a.companyCustomers(ctx, stir, 10)
	if err != nil {
		return nil, err
	}

	a.log.Info("profile assembled",
		zap.String("stir", stir),
		zap.String("company", company.CanonicalName))
	return p, nil
}

func (a *Analyzer) topContracts(ctx context.Context, stir string, limit int) ([]ContractRow, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT deal_date, customer_name, COALESCE(deal_description, ''),
		       start_cost, deal_cost, discount_pct, participants_count
		FROM tender_results
		WHERE provider_stir = $1
		ORDER BY deal_cost DESC
		LIMIT $2`,
		stir, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: top contracts for %s", stir)
	}
	defer rows.Close()

	var out []ContractRow
	for rows.Next() {
		var c ContractRow
		err := rows.Scan(
			&c.DealDate, &c.CustomerName, &c.Description,
			&c.StartCost, &c.DealCost, &c.DiscountPct, &c.Participants,
		)
		if err != nil {
			return nil, eris.Wrap(err, "analysis: scan contract row")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (a *Analyzer) ratingBreakdown(ctx context.Context, stir string) ([]CategoryScore, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT cat.name_ru,
		       COALESCE(ROUND(SUM(r.earned_points), 2), 0),
		       COALESCE(ROUND(SUM(r.max_points), 2), 0),
		       CASE WHEN SUM(r.max_points) > 0
		            THEN ROUND(SUM(r.earned_points) / SUM(r.max_points) * 100, 1)
		            ELSE 0 END
		FROM company_ratings r
		JOIN rating_criteria cr ON r.criterion_id = cr.id
		JOIN rating_categories cat ON cr.category_id = cat.id
		WHERE r.company_stir = $1
		GROUP BY cat.id, cat.name_ru, cat.display_order
		ORDER BY cat.display_order`,
		stir,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: rating breakdown for %s", stir)
	}
	defer rows.Close()

	var out []CategoryScore
	for rows.Next() {
		var c CategoryScore
		if err := rows.Scan(&c.Category, &c.Earned, &c.Max, &c.Percent); err != nil {
			return nil, eris.Wrap(err, "analysis: scan category score")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (a *Analyzer) indicators(ctx context.Context, stir string) ([]IndicatorRow, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT cat.name_ru, cr.name_uz, COALESCE(r.raw_value, ''),
		       r.earned_points, r.max_points
		FROM company_ratings r
		JOIN rating_criteria cr ON r.criterion_id = cr.id
		JOIN rating_categories cat ON cr.category_id = cat.id
		WHERE r.company_stir = $1
		ORDER BY cat.display_order, cr.display_order`,
		stir,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: indicators for %s", stir)
	}
	defer rows.Close()

	var out []IndicatorRow
	for rows.Next() {
		var i IndicatorRow
		if err := rows.Scan(&i.Category, &i.Name, &i.RawValue, &i.Earned, &i.Max); err != nil {
			return nil, eris.Wrap(err, "analysis: scan indicator row")
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (a *Analyzer) companyMonthly(ctx context.Context, stir string, lookbackMonths int) ([]MonthStat, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT TO_CHAR(DATE_TRUNC('month', deal_date), 'YYYY-MM'),
		       COUNT(*), COALESCE(SUM(deal_cost), 0)
		FROM tender_results
		WHERE provider_stir = $1
		  AND deal_date >= CURRENT_DATE - make_interval(months => $2)
		GROUP BY DATE_TRUNC('month', deal_date)
		ORDER BY DATE_TRUNC('month', deal_date)`,
		stir, lookbackMonths,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: monthly activity for %s", stir)
	}
	defer rows.Close()

	var out []MonthStat
	for rows.Next() {
		var m MonthStat
		if err := rows.Scan(&m.Month, &m.Tenders, &m.Volume); err != nil {
			return nil, eris.Wrap(err, "analysis: scan month row")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (a *Analyzer) companyCustomers(ctx context.Context, stir string, limit int) ([]CustomerStat, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT customer_name, COUNT(*), COALESCE(SUM(deal_cost), 0)
		FROM tender_results
		WHERE provider_stir = $1
		GROUP BY customer_name
		ORDER BY COUNT(*) DESC
		LIMIT $2`,
		stir, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: customers for %s", stir)
	}
	defer rows.Close()

	var out []CustomerStat
	for rows.Next() {
		var c CustomerStat
		if err := rows.Scan(&c.CustomerName, &c.Tenders, &c.Volume); err != nil {
			return nil, eris.Wrap(err, "analysis: scan customer row")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
