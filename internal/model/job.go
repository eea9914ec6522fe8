package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of one scrape run.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobPartial JobStatus = "partial"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobPartial || s == JobFailed
}

// Counters holds per-record outcome counts for one run. Monotonically
// increasing; flushed to the job row at least once per page.
type Counters struct {
	Found    int64 `json:"found"`
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`
	Skipped  int64 `json:"skipped"`
	Failed   int64 `json:"failed"`
}

// Add merges another counter set into this one.
func (c *Counters) Add(o Counters) {
	c.Found += o.Found
	c.Inserted += o.Inserted
	c.Updated += o.Updated
	c.Skipped += o.Skipped
	c.Failed += o.Failed
}

// ScrapeJob is the persisted accounting row for one run against one
// source. LastPage is the resumption cursor: the last page fully
// processed and durably recorded.
type ScrapeJob struct {
	ID           int64      `json:"id"`
	PublicID     uuid.UUID  `json:"public_id"`
	Source       Source     `json:"source"`
	Status       JobStatus  `json:"status"`
	Counters     Counters   `json:"counters"`
	LastPage     int        `json:"last_page"`
	ErrorSummary string     `json:"error_summary,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	HeartbeatAt  time.Time  `json:"heartbeat_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
