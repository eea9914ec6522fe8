// Package model defines the persisted shapes of the company registry.
package model

import "time"

// Source identifies which feed a record came from.
type Source string

const (
	SourceETender Source = "etender"
	SourceReyting Source = "reyting"
	SourceBoth    Source = "both"
)

// Company is the canonical registry entry, keyed by its 9-digit STIR.
// The aggregate fields are a pure function of the company's persisted
// tender rows and are only ever written by the aggregator.
type Company struct {
	STIR          string   `json:"stir"`
	CanonicalName string   `json:"canonical_name"`
	RawNames      []string `json:"raw_names"`
	Region        string   `json:"region,omitempty"`
	Source        Source   `json:"source"`

	RatingLetter    string     `json:"rating_letter,omitempty"`
	RatingScore     *float64   `json:"rating_score,omitempty"`
	EmployeeCount   *int       `json:"employee_count,omitempty"`
	SpecialistCount *int       `json:"specialist_count,omitempty"`
	RatingFetchedAt *time.Time `json:"rating_fetched_at,omitempty"`

	TotalWins          int        `json:"total_wins"`
	TotalContractValue float64    `json:"total_contract_value"`
	AvgDiscountPct     float64    `json:"avg_discount_pct"`
	FirstTenderDate    *time.Time `json:"first_tender_date,omitempty"`
	LastTenderDate     *time.Time `json:"last_tender_date,omitempty"`
	ActiveRegions      []string   `json:"active_regions"`
	CompanyType        string     `json:"company_type"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company type classifications, recomputed with the aggregates.
const (
	TypeMajorContractor = "major_contractor"
	TypeContractor      = "contractor"
	TypeSubcontractor   = "subcontractor"
	TypeRatedOnly       = "rated_only"
	TypeUnclassified    = "unclassified"
)
