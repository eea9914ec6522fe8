package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestResolver_Resolve(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO companies").
		WithArgs("200567890", "QURILISH INVEST", `OOO "Qurilish Invest"`, "Ташкент", "etender").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := NewResolver(mock)
	stir, err := r.Resolve(context.Background(), " 200567890 ", `OOO "Qurilish Invest"`, model.SourceETender, "Ташкент")
	require.NoError(t, err)
	assert.Equal(t, "200567890", stir)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_Resolve_InvalidSTIR(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewResolver(mock)
	_, err = r.Resolve(context.Background(), "12345", "X", model.SourceETender, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, normalize.ErrInvalidSTIR))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_Resolve_EmptyNameFallsBackToSTIR(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// A record with no usable name still creates the company; the
	// identifier stands in as the canonical name.
	mock.ExpectExec("INSERT INTO companies").
		WithArgs("200567890", "200567890", "", "", "reyting").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := NewResolver(mock)
	stir, err := r.Resolve(context.Background(), "200567890", "", model.SourceReyting, "")
	require.NoError(t, err)
	assert.Equal(t, "200567890", stir)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("200567890").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := NewResolver(mock).Exists(context.Background(), "200567890")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_UpdateRatingSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	score := 87.5
	employees := 120

	mock.ExpectExec("UPDATE companies SET").
		WithArgs("200567890", "A", &score, &employees, (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewResolver(mock).UpdateRatingSummary(context.Background(), "200567890", model.ScoreSummary{
		Letter:        "A",
		Score:         &score,
		EmployeeCount: &employees,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
