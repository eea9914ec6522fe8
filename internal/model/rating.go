package model

// ScoreSummary carries the company-level rating fields updated
// unconditionally on each ingestion pass.
type ScoreSummary struct {
	Letter          string   `json:"letter,omitempty"`
	Score           *float64 `json:"score,omitempty"`
	EmployeeCount   *int     `json:"employee_count,omitempty"`
	SpecialistCount *int     `json:"specialist_count,omitempty"`
}
