package report

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/analysis"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestAddProfileSheet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	const stir = "200567890"
	now := time.Now()
	day := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	region := "Тошкент шахар"
	letter := "A"
	score := 87.5
	earned := 8.5
	maxPts := 10.0

	mock.ExpectQuery("SELECT stir, canonical_name, raw_names").
		WithArgs(stir).
		WillReturnRows(pgxmock.NewRows([]string{
			"stir", "canonical_name", "raw_names", "region", "source",
			"rating_letter", "rating_score", "employee_count", "specialist_count",
			"rating_fetched_at", "total_wins", "total_contract_value",
			"avg_discount_pct", "first_tender_date", "last_tender_date",
			"active_regions", "company_type", "created_at", "updated_at",
		}).AddRow(
			stir, "QURILISH INVEST",
		[]byte(`["OOO \"Qurilish Invest\"", "OOO  \"Qurilish Invest\" "]`), &region, "both",
			&letter, &score, (*int)(nil), (*int)(nil),
			(*time.Time)(nil), 14, 52_000_000_000.0,
			8.75, (*time.Time)(nil), (*time.Time)(nil),
			[]byte(nil), "contractor", now, now,
		))

	mock.ExpectQuery("SELECT deal_date, customer_name").
		WithArgs(stir, 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"deal_date", "customer_name", "description",
			"start_cost", "deal_cost", "discount_pct", "participants_count",
		}).AddRow(&day, "Тошкент шахар хокимлиги", "Школа",
			1_000_000_000.0, 900_000_000.0, 10.0, 3))

	mock.ExpectQuery("SELECT cat.name_ru").
		WithArgs(stir).
		WillReturnRows(pgxmock.NewRows([]string{"name_ru", "earned", "max", "percent"}).
			AddRow("Кадровый потенциал", 40.5, 50.0, 81.0))

	mock.ExpectQuery("SELECT cat.name_ru, cr.name_uz").
		WithArgs(stir).
		WillReturnRows(pgxmock.NewRows([]string{"category", "name", "raw_value", "earned", "max"}).
			AddRow("Кадровый потенциал", "Jami ishchilar", "120", &earned, &maxPts))

	mock.ExpectQuery("SELECT TO_CHAR").
		WithArgs(stir, 12).
		WillReturnRows(pgxmock.NewRows([]string{"month", "tenders", "volume"}).
			AddRow("2026-02", int64(2), 1_900_000_000.0))

	mock.ExpectQuery("SELECT customer_name").
		WithArgs(stir, 10).
		WillReturnRows(pgxmock.NewRows([]string{"customer_name", "tenders", "volume"}).
			AddRow("Тошкент шахар хокимлиги", int64(3), 2_700_000_000.0))

	e := NewExporter(analysis.New(mock))
	file := xlsx.NewFile()
	require.NoError(t, e.addProfile(context.Background(), file, stir))

	sheet, ok := file.Sheet["Profile "+stir]
	require.True(t, ok)

	assert.Equal(t, "Company", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "QURILISH INVEST", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "Wins", sheet.Rows[6].Cells[0].Value)
	assert.Equal(t, "14", sheet.Rows[6].Cells[1].Value)
	assert.Equal(t, "Known names", sheet.Rows[9].Cells[0].Value)
	assert.Equal(t, `OOO "Qurilish Invest"`, sheet.Rows[9].Cells[1].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}
