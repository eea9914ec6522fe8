package model

import "time"

// TenderResult is one persisted tender deal, unique per DealID.
// DiscountPct is derived from the two prices and never taken from the
// source payload.
type TenderResult struct {
	ID                int64      `json:"id"`
	DealID            int64      `json:"deal_id"`
	StartCost         float64    `json:"start_cost"`
	DealCost          float64    `json:"deal_cost"`
	DiscountPct       float64    `json:"discount_pct"`
	CustomerName      string     `json:"customer_name"`
	ProviderSTIR      *string    `json:"provider_stir,omitempty"`
	ProviderName      string     `json:"provider_name"`
	DealDate          *time.Time `json:"deal_date,omitempty"`
	DealDescription   string     `json:"deal_description"`
	ParticipantsCount int        `json:"participants_count"`
	Region            string     `json:"region,omitempty"`
	RawData           []byte     `json:"raw_data,omitempty"`
	ScrapedAt         time.Time  `json:"scraped_at"`
}

// Discount computes the stored discount percentage from the price pair:
// round((start-deal)/start*100, 2) when start > 0, else 0.
func Discount(startCost, dealCost float64) float64 {
	if startCost <= 0 {
		return 0
	}
	return Round2((startCost - dealCost) / startCost * 100)
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
