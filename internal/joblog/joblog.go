// Package joblog tracks scrape runs in the scrape_jobs table: run
// lifecycle, per-record counters, the resumption cursor, and recovery
// of runs orphaned by a crash.
package joblog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/db"
	"github.com/uzbuild/market-intel/internal/model"
)

// ErrAlreadyRunning is returned by Start when the source already has a
// live run. The partial unique index on scrape_jobs backs this up at
// the database level.
var ErrAlreadyRunning = eris.New("joblog: a run is already in progress for this source")

// Log provides read/write access to the scrape_jobs table.
type Log struct {
	pool db.Pool
	log  *zap.Logger
}

// New creates a Log backed by the given pool.
func New(pool db.Pool) *Log {
	return &Log{
		pool: pool,
		log:  zap.L().With(zap.String("component", "joblog")),
	}
}

// Start opens a new run for a source. It refuses when a run is still
// marked running; call RecoverStale first to clear crashed runs.
func (l *Log) Start(ctx context.Context, source model.Source) (*model.ScrapeJob, error) {
	var running bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scrape_jobs WHERE source = $1 AND status = 'running')`,
		string(source),
	).Scan(&running)
	if err != nil {
		return nil, eris.Wrapf(err, "joblog: check running for %s", source)
	}
	if running {
		return nil, ErrAlreadyRunning
	}

	job := &model.ScrapeJob{
		PublicID: uuid.New(),
		Source:   source,
		Status:   model.JobRunning,
	}
	err = l.pool.QueryRow(ctx,
		`INSERT INTO scrape_jobs (public_id, source, status)
		 VALUES ($1, $2, 'running')
		 RETURNING id, started_at, heartbeat_at`,
		job.PublicID, string(source),
	).Scan(&job.ID, &job.StartedAt, &job.HeartbeatAt)
	if err != nil {
		return nil, eris.Wrapf(err, "joblog: start run for %s", source)
	}

	l.log.Info("run started",
		zap.String("source", string(source)),
		zap.String("public_id", job.PublicID.String()))
	return job, nil
}

// Flush persists the run's counters and cursor and refreshes the
// heartbeat. Called after every fully processed page, before the next
// page is requested, so a resumed run never reprocesses a recorded
// page.
func (l *Log) Flush(ctx context.Context, jobID int64, c model.Counters, lastPage int) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE scrape_jobs SET
			records_found    = $2,
			records_inserted = $3,
			records_updated  = $4,
			records_skipped  = $5,
			records_failed   = $6,
			last_page        = $7,
			heartbeat_at     = now()
		 WHERE id = $1`,
		jobID, c.Found, c.Inserted, c.Updated, c.Skipped, c.Failed, lastPage,
	)
	if err != nil {
		return eris.Wrapf(err, "joblog: flush run %d", jobID)
	}
	return nil
}

// Heartbeat refreshes only the liveness timestamp, for long stretches
// between page flushes.
func (l *Log) Heartbeat(ctx context.Context, jobID int64) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE scrape_jobs SET heartbeat_at = now() WHERE id = $1`, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "joblog: heartbeat run %d", jobID)
	}
	return nil
}

// Finish moves a run to a terminal status with its final counters.
func (l *Log) Finish(ctx context.Context, jobID int64, status model.JobStatus, c model.Counters, lastPage int, errSummary string) error {
	if !status.Terminal() {
		return eris.Errorf("joblog: %q is not a terminal status", status)
	}
	_, err := l.pool.Exec(ctx,
		`UPDATE scrape_jobs SET
			status           = $2,
			records_found    = $3,
			records_inserted = $4,
			records_updated  = $5,
			records_skipped  = $6,
			records_failed   = $7,
			last_page        = $8,
			error_summary    = NULLIF($9, ''),
			heartbeat_at     = now(),
			finished_at      = now()
		 WHERE id = $1`,
		jobID, string(status),
		c.Found, c.Inserted, c.Updated, c.Skipped, c.Failed,
		lastPage, errSummary,
	)
	if err != nil {
		return eris.Wrapf(err, "joblog: finish run %d", jobID)
	}

	l.log.Info("run finished",
		zap.Int64("job_id", jobID),
		zap.String("status", string(status)),
		zap.Int64("found", c.Found),
		zap.Int64("inserted", c.Inserted),
		zap.Int64("updated", c.Updated),
		zap.Int64("skipped", c.Skipped),
		zap.Int64("failed", c.Failed))
	return nil
}

// RecoverStale marks running jobs whose heartbeat is older than the
// timeout as failed. Covers runs orphaned by a crash or kill, which
// would otherwise block the source forever.
func (l *Log) RecoverStale(ctx context.Context, source model.Source, timeout time.Duration) (int, error) {
	tag, err := l.pool.Exec(ctx,
		`UPDATE scrape_jobs SET
			status        = 'failed',
			error_summary = $3,
			finished_at   = now()
		 WHERE source = $1 AND status = 'running' AND heartbeat_at < now() - $2::interval`,
		string(source),
		fmt.Sprintf("%d seconds", int(timeout.Seconds())),
		fmt.Sprintf("stale: no heartbeat for %s", timeout),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "joblog: recover stale runs for %s", source)
	}

	n := int(tag.RowsAffected())
	if n > 0 {
		l.log.Warn("stale runs reclassified as failed",
			zap.String("source", string(source)), zap.Int("count", n))
	}
	return n, nil
}

// LastSuccess returns the cursor of the most recent successful or
// partial run for a source. Returns nil when the source has never
// completed a run.
func (l *Log) LastSuccess(ctx context.Context, source model.Source) (*model.ScrapeJob, error) {
	row := l.pool.QueryRow(ctx,
		selectJobSQL+` WHERE source = $1 AND status IN ('success', 'partial')
		 ORDER BY started_at DESC LIMIT 1`,
		string(source),
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "joblog: last success for %s", source)
	}
	return job, nil
}

// Get looks a run up by its public id.
func (l *Log) Get(ctx context.Context, publicID uuid.UUID) (*model.ScrapeJob, error) {
	row := l.pool.QueryRow(ctx, selectJobSQL+` WHERE public_id = $1`, publicID)
	job, err := scanJob(row)
	if err != nil {
		return nil, eris.Wrapf(err, "joblog: get run %s", publicID)
	}
	return job, nil
}

// List returns the most recent runs, newest first. A zero limit means
// all runs; an empty source means all sources.
func (l *Log) List(ctx context.Context, source model.Source, limit int) ([]model.ScrapeJob, error) {
	q := selectJobSQL
	args := []any{}
	if source != "" {
		q += ` WHERE source = $1`
		args = append(args, string(source))
	}
	q += ` ORDER BY started_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "joblog: list runs")
	}
	defer rows.Close()

	var jobs []model.ScrapeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "joblog: scan run")
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

const selectJobSQL = `
	SELECT id, public_id, source, status,
	       records_found, records_inserted, records_updated,
	       records_skipped, records_failed,
	       last_page, error_summary, started_at, heartbeat_at, finished_at
	FROM scrape_jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.ScrapeJob, error) {
	var (
		job     model.ScrapeJob
		source  string
		status  string
		errText *string
	)
	err := row.Scan(
		&job.ID, &job.PublicID, &source, &status,
		&job.Counters.Found, &job.Counters.Inserted, &job.Counters.Updated,
		&job.Counters.Skipped, &job.Counters.Failed,
		&job.LastPage, &errText, &job.StartedAt, &job.HeartbeatAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Source = model.Source(source)
	job.Status = model.JobStatus(status)
	if errText != nil {
		job.ErrorSummary = *errText
	}
	return &job, nil
}
