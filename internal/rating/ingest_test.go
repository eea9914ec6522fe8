package rating

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/registry"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testDate = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

func floatPtr(v float64) *float64 { return &v }

func testObservation() Observation {
	return Observation{
		CriterionCode: "mehnat_total_workers",
		CriterionName: "Общее число работников",
		CategoryCode:  "qualified_specialists",
		SourceAgency:  "Минтруда",
		RawValue:      "120",
		Earned:        floatPtr(2),
		Max:           floatPtr(3),
	}
}

// expectIngestCommon covers the steps shared by every ingest pass:
// criterion lookup, EAV upsert, and the consolidated view rebuild.
func expectIngestCommon(mock pgxmock.PgxPoolIface, stir string) {
	// EnsureCriterion finds the seeded criterion.
	mock.ExpectQuery("SELECT id FROM rating_criteria").
		WithArgs("mehnat_total_workers").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(5))

	// EAV row upsert.
	mock.ExpectExec("INSERT INTO company_ratings").
		WithArgs(stir, 5, "120", floatPtr(2), floatPtr(3), testDate).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Consolidated view rebuild from the persisted rows.
	raw := "120"
	mock.ExpectQuery("SELECT cat.code, cr.code").
		WithArgs(stir, testDate).
		WillReturnRows(pgxmock.
			NewRows([]string{"cat", "code", "raw_value", "earned", "max"}).
			AddRow("qualified_specialists", "mehnat_total_workers", &raw, floatPtr(2), floatPtr(3)))
}

func newTestIngestor(mock pgxmock.PgxPoolIface) *Ingestor {
	return NewIngestor(mock, NewCatalog(mock), registry.NewResolver(mock))
}

// expectSnapshotInsert expects the snapshot write for the view rebuilt
// by expectIngestCommon.
func expectSnapshotInsert(t *testing.T, mock pgxmock.PgxPoolIface, stir string, rawPayload []byte) {
	t.Helper()

	view := Consolidated{
		Categories: []CategoryTotal{{Code: "qualified_specialists", Earned: 2, Max: 3}},
		Indicators: []IndicatorLine{{
			CriterionCode: "mehnat_total_workers",
			RawValue:      "120",
			Earned:        floatPtr(2),
			Max:           floatPtr(3),
		}},
	}
	catJSON, err := json.Marshal(view.Categories)
	require.NoError(t, err)
	indJSON, err := json.Marshal(view.Indicators)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO company_rating_snapshots").
		WithArgs(stir, testDate, catJSON, indJSON, rawPayload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestIngest_FirstObservationWritesSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectIngestCommon(mock, "200567890")

	// No prior snapshot.
	mock.ExpectQuery("SELECT categories_json, indicators_json").
		WithArgs("200567890", testDate).
		WillReturnRows(pgxmock.NewRows([]string{"categories_json", "indicators_json"}))

	expectSnapshotInsert(t, mock, "200567890", []byte(`{}`))

	mock.ExpectExec("UPDATE companies SET").
		WithArgs("200567890", "A", (*float64)(nil), (*int)(nil), (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := newTestIngestor(mock).Ingest(
		context.Background(), "200567890", testDate,
		[]Observation{testObservation()},
		model.ScoreSummary{Letter: "A"}, []byte(`{}`),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indicators)
	assert.True(t, res.SnapshotWritten)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_UnchangedSkipsSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectIngestCommon(mock, "200567890")

	// Prior snapshot content is identical to the rebuilt view, so no
	// new snapshot row may be written.
	prior := Consolidated{
		Categories: []CategoryTotal{{Code: "qualified_specialists", Earned: 2, Max: 3}},
		Indicators: []IndicatorLine{{
			CriterionCode: "mehnat_total_workers",
			RawValue:      "120",
			Earned:        floatPtr(2),
			Max:           floatPtr(3),
		}},
	}
	catJSON, err := json.Marshal(prior.Categories)
	require.NoError(t, err)
	indJSON, err := json.Marshal(prior.Indicators)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT categories_json, indicators_json").
		WithArgs("200567890", testDate).
		WillReturnRows(pgxmock.
			NewRows([]string{"categories_json", "indicators_json"}).
			AddRow(catJSON, indJSON))

	// Straight to the summary update.
	mock.ExpectExec("UPDATE companies SET").
		WithArgs("200567890", "A", (*float64)(nil), (*int)(nil), (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := newTestIngestor(mock).Ingest(
		context.Background(), "200567890", testDate,
		[]Observation{testObservation()},
		model.ScoreSummary{Letter: "A"}, []byte(`{}`),
	)
	require.NoError(t, err)
	assert.False(t, res.SnapshotWritten)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_ChangedValueWritesSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectIngestCommon(mock, "200567890")

	// Prior snapshot has a different earned value.
	prior := Consolidated{
		Categories: []CategoryTotal{{Code: "qualified_specialists", Earned: 1, Max: 3}},
		Indicators: []IndicatorLine{{
			CriterionCode: "mehnat_total_workers",
			RawValue:      "95",
			Earned:        floatPtr(1),
			Max:           floatPtr(3),
		}},
	}
	catJSON, err := json.Marshal(prior.Categories)
	require.NoError(t, err)
	indJSON, err := json.Marshal(prior.Indicators)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT categories_json, indicators_json").
		WithArgs("200567890", testDate).
		WillReturnRows(pgxmock.
			NewRows([]string{"categories_json", "indicators_json"}).
			AddRow(catJSON, indJSON))

	expectSnapshotInsert(t, mock, "200567890", nil)
	mock.ExpectExec("UPDATE companies SET").
		WithArgs("200567890", "", (*float64)(nil), (*int)(nil), (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := newTestIngestor(mock).Ingest(
		context.Background(), "200567890", testDate,
		[]Observation{testObservation()},
		model.ScoreSummary{}, nil,
	)
	require.NoError(t, err)
	assert.True(t, res.SnapshotWritten)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffCounts(t *testing.T) {
	obs := []Observation{
		{CriterionCode: "mehnat_total_workers", RawValue: "120"},
		{CriterionCode: "mehnat_engineers", Earned: floatPtr(35)},
		{CriterionCode: "soliq_tax_debt", RawValue: "0"},
	}

	employees, specialists := StaffCounts(obs)
	require.NotNil(t, employees)
	require.NotNil(t, specialists)
	assert.Equal(t, 120, *employees)
	assert.Equal(t, 35, *specialists)
}

func TestStaffCounts_Absent(t *testing.T) {
	employees, specialists := StaffCounts([]Observation{
		{CriterionCode: "raqobat_contracts", RawValue: "7"},
	})
	assert.Nil(t, employees)
	assert.Nil(t, specialists)
}
