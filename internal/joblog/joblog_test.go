package joblog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("etender").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO scrape_jobs").
		WithArgs(pgxmock.AnyArg(), "etender").
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "started_at", "heartbeat_at"}).
			AddRow(int64(7), now, now))

	job, err := New(mock).Start(context.Background(), model.SourceETender)
	require.NoError(t, err)
	assert.Equal(t, int64(7), job.ID)
	assert.Equal(t, model.SourceETender, job.Source)
	assert.Equal(t, model.JobRunning, job.Status)
	assert.NotEqual(t, uuid.Nil, job.PublicID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_RefusesWhileRunning(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("etender").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = New(mock).Start(context.Background(), model.SourceETender)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlush(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := model.Counters{Found: 40, Inserted: 12, Updated: 3, Skipped: 24, Failed: 1}
	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs(int64(7), c.Found, c.Inserted, c.Updated, c.Skipped, c.Failed, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, New(mock).Flush(context.Background(), 7, c, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := model.Counters{Found: 40, Failed: 1}
	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs(int64(7), "partial",
			c.Found, c.Inserted, c.Updated, c.Skipped, c.Failed,
			2, "1 pages failed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).Finish(context.Background(), 7, model.JobPartial, c, 2, "1 pages failed")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_RejectsNonTerminalStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = New(mock).Finish(context.Background(), 7, model.JobRunning, model.Counters{}, 0, "")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs("etender", "900 seconds", "stale: no heartbeat for 15m0s").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := New(mock).RecoverStale(context.Background(), model.SourceETender, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	id := uuid.New()
	errText := "timeout"
	mock.ExpectQuery("SELECT id, public_id, source, status").
		WithArgs("etender").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "public_id", "source", "status",
			"records_found", "records_inserted", "records_updated",
			"records_skipped", "records_failed",
			"last_page", "error_summary", "started_at", "heartbeat_at", "finished_at",
		}).AddRow(
			int64(7), id, "etender", "failed",
			int64(40), int64(12), int64(3), int64(24), int64(1),
			2, &errText, now, now, &now,
		))

	jobs, err := New(mock).List(context.Background(), model.SourceETender, 5)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].PublicID)
	assert.Equal(t, model.JobFailed, jobs[0].Status)
	assert.Equal(t, "timeout", jobs[0].ErrorSummary)
	assert.Equal(t, int64(40), jobs[0].Counters.Found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	id := uuid.New()
	mock.ExpectQuery(`status IN \('success', 'partial'\)`).
		WithArgs("reyting").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "public_id", "source", "status",
			"records_found", "records_inserted", "records_updated",
			"records_skipped", "records_failed",
			"last_page", "error_summary", "started_at", "heartbeat_at", "finished_at",
		}).AddRow(
			int64(9), id, "reyting", "success",
			int64(200), int64(150), int64(10), int64(40), int64(0),
			8, (*string)(nil), now, now, &now,
		))

	job, err := New(mock).LastSuccess(context.Background(), model.SourceReyting)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.JobSuccess, job.Status)
	assert.Equal(t, 8, job.LastPage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastSuccess_NoCompletedRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`status IN \('success', 'partial'\)`).
		WithArgs("etender").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	job, err := New(mock).LastSuccess(context.Background(), model.SourceETender)
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}
