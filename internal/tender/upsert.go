// Package tender persists tender results idempotently, keyed by the
// source deal identifier.
package tender

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/uzbuild/market-intel/internal/db"
	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
)

// Outcome reports what an upsert did.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
)

// Upserter writes tender rows. Re-submitting a deal id updates the
// existing row's mutable fields in place.
type Upserter struct {
	pool db.Pool
}

// NewUpserter creates an Upserter backed by the given pool.
func NewUpserter(pool db.Pool) *Upserter {
	return &Upserter{pool: pool}
}

// upsertSQL uses xmax = 0 to distinguish a fresh insert from a
// conflict update in a single round trip.
const upsertSQL = `
	INSERT INTO tender_results
		(deal_id, start_cost, deal_cost, discount_pct, customer_name,
		 provider_stir, provider_name, deal_date, deal_description,
		 participants_count, region, raw_data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)
	ON CONFLICT (deal_id) DO UPDATE SET
		start_cost         = EXCLUDED.start_cost,
		deal_cost          = EXCLUDED.deal_cost,
		discount_pct       = EXCLUDED.discount_pct,
		customer_name      = EXCLUDED.customer_name,
		provider_stir      = EXCLUDED.provider_stir,
		provider_name      = EXCLUDED.provider_name,
		deal_date          = EXCLUDED.deal_date,
		deal_description   = EXCLUDED.deal_description,
		participants_count = EXCLUDED.participants_count,
		region             = EXCLUDED.region,
		raw_data           = EXCLUDED.raw_data,
		scraped_at         = now()
	RETURNING (xmax = 0) AS is_insert`

// Upsert persists one normalized tender record. The discount is always
// recomputed from the price pair, never taken from the source. A record
// whose provider STIR fails validation is still stored, with the
// provider reference left unset.
func (u *Upserter) Upsert(ctx context.Context, rec *normalize.TenderRecord) (Outcome, error) {
	var providerSTIR *string
	if s, err := normalize.ValidateSTIR(rec.ProviderSTIR); err == nil {
		providerSTIR = &s
	}

	discount := model.Discount(rec.StartCost, rec.DealCost)

	var isInsert bool
	err := u.pool.QueryRow(ctx, upsertSQL,
		rec.DealID,
		rec.StartCost,
		rec.DealCost,
		discount,
		rec.CustomerName,
		providerSTIR,
		rec.ProviderName,
		rec.DealDate,
		rec.Description,
		rec.ParticipantsCount,
		rec.Region,
		rec.Raw,
	).Scan(&isInsert)
	if err != nil {
		return "", eris.Wrapf(err, "tender: upsert deal %d", rec.DealID)
	}

	if isInsert {
		return OutcomeInserted, nil
	}
	return OutcomeUpdated, nil
}

// Count returns the number of persisted tender rows for a provider.
func (u *Upserter) Count(ctx context.Context, stir string) (int64, error) {
	var n int64
	err := u.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tender_results WHERE provider_stir = $1`, stir,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "tender: count for %s", stir)
	}
	return n, nil
}
