// Package analysis runs the read-side market intelligence queries over
// the registry: rankings, market overview, company profiles, and
// head-to-head comparisons.
package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/db"
)

// Analyzer executes the read-side queries.
type Analyzer struct {
	pool db.Pool
	log  *zap.Logger
}

// New creates an Analyzer backed by the given pool.
func New(pool db.Pool) *Analyzer {
	return &Analyzer{
		pool: pool,
		log:  zap.L().With(zap.String("component", "analysis")),
	}
}

// LeaderboardRow is one company in the win-count ranking.
type LeaderboardRow struct {
	Rank          int
	CanonicalName string
	STIR          string
	Region        string
	RatingLetter  string
	RatingScore   *float64
	TotalWins     int64
	TotalValue    float64
	AvgDiscount   float64
	EmployeeCount *int
}

// TopCompanies returns the top companies by tender wins.
func (a *Analyzer) TopCompanies(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT rank, canonical_name, stir, COALESCE(region, ''),
		       COALESCE(rating_letter, ''), rating_score,
		       total_wins, total_contract_value, avg_discount_pct,
		       employee_count
		FROM company_leaderboard
		WHERE total_wins > 0
		ORDER BY rank
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: top companies")
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		err := rows.Scan(
			&r.Rank, &r.CanonicalName, &r.STIR, &r.Region,
			&r.RatingLetter, &r.RatingScore,
			&r.TotalWins, &r.TotalValue, &r.AvgDiscount,
			&r.EmployeeCount,
		)
		if err != nil {
			return nil, eris.Wrap(err, "analysis: scan leaderboard row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarketSummary is the overall market picture for a lookback window.
type MarketSummary struct {
	TotalTenders    int64
	UniqueWinners   int64
	TotalVolume     float64
	AvgContract     float64
	AvgDiscount     float64
	AvgParticipants float64
}

// RegionStat is tender activity in one region.
type RegionStat struct {
	Region      string
	Tenders     int64
	Volume      float64
	AvgDiscount float64
}

// MonthStat is tender activity in one calendar month.
type MonthStat struct {
	Month   string
	Tenders int64
	Volume  float64
}

// CustomerStat is tender activity for one procuring customer.
type CustomerStat struct {
	CustomerName string
	Tenders      int64
	Volume       float64
}

// Overview is the full market overview report.
type Overview struct {
	Summary      MarketSummary
	ByRegion     []RegionStat
	MonthlyTrend []MonthStat
	TopCustomers []CustomerStat
}

// MarketOverview assembles summary metrics, regional distribution,
// the monthly trend, and the biggest customers over the lookback
// window.
func (a *Analyzer) MarketOverview(ctx context.Context, lookbackMonths int) (*Overview, error) {
	if lookbackMonths <= 0 {
		lookbackMonths = 12
	}
	o := &Overview{}

	err := a.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT provider_stir),
		       COALESCE(SUM(deal_cost), 0),
		       COALESCE(AVG(deal_cost), 0),
		       COALESCE(ROUND(AVG(
		           CASE WHEN start_cost > 0
		                THEN (start_cost - deal_cost) / start_cost * 100
		                ELSE 0 END), 2), 0),
		       COALESCE(ROUND(AVG(participants_count)::numeric, 1), 0)
		FROM tender_results
		WHERE deal_date >= CURRENT_DATE - make_interval(months => $1)`,
		lookbackMonths,
	).Scan(
		&o.Summary.TotalTenders, &o.Summary.UniqueWinners,
		&o.Summary.TotalVolume, &o.Summary.AvgContract,
		&o.Summary.AvgDiscount, &o.Summary.AvgParticipants,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: market summary")
	}

	o.ByRegion, err = a.regionalDistribution(ctx, lookbackMonths)
	if err != nil {
		return nil, err
	}
	o.MonthlyTrend, err = a.monthlyTrend(ctx, lookbackMonths)
	if err != nil {
		return nil, err
	}
	o.TopCustomers, err = a.topCustomers(ctx, lookbackMonths, 10)
	if err != nil {
		return nil, err
	}

	a.log.Info("market overview assembled",
		zap.Int("lookback_months", lookbackMonths),
		zap.Int64("tenders", o.Summary.TotalTenders))
	return o, nil
}

func (a *Analyzer) regionalDistribution(ctx context.Context, lookbackMonths int) ([]RegionStat, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT COALESCE(region, 'unknown'),
		       COUNT(*),
		       COALESCE(SUM(deal_cost), 0),
		       COALESCE(ROUND(AVG(
		           CASE WHEN start_cost > 0
		                THEN (start_cost - deal_cost) / start_cost * 100
		                ELSE 0 END), 2), 0)
		FROM tender_results
		WHERE deal_date >= CURRENT_DATE - make_interval(months => $1)
		GROUP BY region
		ORDER BY SUM(deal_cost) DESC`,
		lookbackMonths,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: regional distribution")
	}
	defer rows.Close()

	var out []RegionStat
	for rows.Next() {
		var r RegionStat
		if err := rows.Scan(&r.Region, &r.Tenders, &r.Volume, &r.AvgDiscount); err != nil {
			return nil, eris.Wrap(err, "analysis: scan region row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (a *Analyzer) monthlyTrend(ctx context.Context, lookbackMonths int) ([]MonthStat, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT TO_CHAR(DATE_TRUNC('month', deal_date), 'YYYY-MM'),
		       COUNT(*),
		       COALESCE(SUM(deal_cost), 0)
		FROM tender_results
		WHERE deal_date >= CURRENT_DATE - make_interval(months => $1)
		GROUP BY DATE_TRUNC('month', deal_date)
		ORDER BY DATE_TRUNC('month', deal_date)`,
		lookbackMonths,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: monthly trend")
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

func (a *Analyzer) topCustomers(ctx context.Context, lookbackMonths, limit int) ([]CustomerStat, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT customer_name, COUNT(*), COALESCE(SUM(deal_cost), 0)
		FROM tender_results
		WHERE deal_date >= CURRENT_DATE - make_interval(months => $1)
		GROUP BY customer_name
		ORDER BY SUM(deal_cost) DESC
		LIMIT $2`,
		lookbackMonths, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: top customers")
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

// PositionRow is one company in the rank report: the requested company
// plus the market leaders it is measured against.
type PositionRow struct {
	CanonicalName  string
	STIR           string
	Region         string
	RatingLetter   string
	RatingScore    *float64
	RankRating     int64
	TotalWins      int64
	RankWins       int64
	TotalValue     float64
	RankValue      int64
	TotalCompanies int64
}

// Position ranks a company against every competitor with tender wins
// or a rating score, returning it alongside the top ten by wins.
func (a *Analyzer) Position(ctx context.Context, stir string) ([]PositionRow, error) {
	rows, err := a.pool.Query(ctx, `
		WITH ranked AS (
			SELECT stir, canonical_name, COALESCE(region, '') AS region,
			       COALESCE(rating_letter, '') AS rating_letter,
			       rating_score, total_wins, total_contract_value,
			       RANK() OVER (ORDER BY total_wins DESC)               AS rank_wins,
			       RANK() OVER (ORDER BY total_contract_value DESC)     AS rank_value,
			       RANK() OVER (ORDER BY rating_score DESC NULLS LAST)  AS rank_rating,
			       COUNT(*) OVER ()                                     AS total_companies
			FROM companies
			WHERE total_wins > 0 OR rating_score IS NOT NULL
		)
		SELECT canonical_name, stir, region, rating_letter, rating_score,
		       rank_rating, total_wins, rank_wins,
		       total_contract_value, rank_value, total_companies
		FROM ranked
		WHERE stir = $1 OR rank_wins <= 10
		ORDER BY rank_wins`,
		stir,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: position for %s", stir)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var r PositionRow
		err := rows.Scan(
			&r.CanonicalName, &r.STIR, &r.Region, &r.RatingLetter, &r.RatingScore,
			&r.RankRating, &r.TotalWins, &r.RankWins,
			&r.TotalValue, &r.RankValue, &r.TotalCompanies,
		)
		if err != nil {
			return nil, eris.Wrap(err, "analysis: scan position row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentDeal is one row of the rolling 12-month tender window, joined
// with the winner's registry entry where one exists.
type RecentDeal struct {
	DealID        int64
	DealDate      time.Time
	CustomerName  string
	ProviderName  string
	CanonicalName string
	RatingLetter  string
	CompanyType   string
	DealCost      float64
	DiscountPct   float64
	Region        string
}

// RecentDeals returns the largest deals of the rolling 12-month window,
// newest first within equal cost.
func (a *Analyzer) RecentDeals(ctx context.Context, limit int) ([]RecentDeal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.pool.Query(ctx, `
		SELECT deal_id, deal_date, customer_name, provider_name,
		       COALESCE(canonical_name, ''), COALESCE(rating_letter, ''),
		       COALESCE(company_type, ''), deal_cost, discount_pct,
		       COALESCE(region, '')
		FROM tender_window_12m
		ORDER BY deal_cost DESC, deal_date DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: recent deals")
	}
	defer rows.Close()

	var out []RecentDeal
	for rows.Next() {
		var d RecentDeal
		err := rows.Scan(
			&d.DealID, &d.DealDate, &d.CustomerName, &d.ProviderName,
			&d.CanonicalName, &d.RatingLetter, &d.CompanyType,
			&d.DealCost, &d.DiscountPct, &d.Region,
		)
		if err != nil {
			return nil, eris.Wrap(err, "analysis: scan recent deal")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SearchHit is one company matched by a name search.
type SearchHit struct {
	STIR          string
	CanonicalName string
	TotalWins     int64
	TotalValue    float64
	RatingLetter  string
}

// Search finds companies whose canonical name or any raw name variant
// contains the query, best win counts first.
func (a *Analyzer) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := a.pool.Query(ctx, `
		SELECT stir, canonical_name, total_wins, total_contract_value,
		       COALESCE(rating_letter, '')
		FROM companies
		WHERE canonical_name ILIKE $1 OR raw_names::text ILIKE $1
		ORDER BY total_wins DESC
		LIMIT $2`,
		"%"+query+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: search %q", query)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		err := rows.Scan(&h.STIR, &h.CanonicalName, &h.TotalWins, &h.TotalValue, &h.RatingLetter)
		if err != nil {
			return nil, eris.Wrap(err, "analysis: scan search hit")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
