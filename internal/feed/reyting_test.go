package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReytingTotalPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/category/all", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("type"))
		assert.Equal(t, "1", r.URL.Query().Get("perPage"))
		io.WriteString(w, `{"data": {"total": 250, "data": [{"inn": "200567890"}]}}`)
	}))
	defer srv.Close()

	src := NewReyting(newTestClient(), srv.URL, 2, 100)
	pages, err := src.TotalPages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestReytingFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("type"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("perPage"))
		io.WriteString(w, `{"data": {"total": 250, "data": [
			{"inn": "200567890", "name": "QURILISH INVEST", "rating": "A", "sumbal": 87.5},
			{"inn": "305123456", "name": "BUNYODKOR", "rating": "B", "sumbal": 64.2}
		]}}`)
	}))
	defer srv.Close()

	src := NewReyting(newTestClient(), srv.URL, 0, 100)
	page, err := src.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "200567890", page.Records[0]["inn"])
}

func TestReytingFetchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/category/get/200567890", r.URL.Path)
		io.WriteString(w, `{"success": true, "data": {
			"inn": "200567890",
			"ballar": {
				"mehnat": {"data": [
					{"key": "mehnat_total_workers", "nomi_ru": "Всего работников",
					 "qiymat": 120, "ball": 8.5, "max_ball": 10, "masul_ru": "Минтруд"}
				]},
				"soliq": {"data": [
					{"nomi_uz": "Soliq qarzi", "qiymat": "yo'q", "ball": 5, "max_ball": 5}
				]}
			}
		}}`)
	}))
	defer srv.Close()

	src := NewReyting(newTestClient(), srv.URL, 0, 100)
	detail, err := src.FetchDetail(context.Background(), "200567890")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.NotEmpty(t, detail.RawPayload)

	obs := detail.Observations
	require.Len(t, obs, 2)
	sort.Slice(obs, func(i, j int) bool { return obs[i].CriterionCode < obs[j].CriterionCode })

	workers := obs[0]
	assert.Equal(t, "mehnat_total_workers", workers.CriterionCode)
	assert.Equal(t, "Всего работников", workers.CriterionName)
	assert.Equal(t, "qualified_specialists", workers.CategoryCode)
	assert.Equal(t, "Минтруд", workers.SourceAgency)
	assert.Equal(t, "120", workers.RawValue)
	require.NotNil(t, workers.Earned)
	assert.InDelta(t, 8.5, *workers.Earned, 1e-9)
	require.NotNil(t, workers.Max)
	assert.InDelta(t, 10, *workers.Max, 1e-9)

	debt := obs[1]
	assert.Equal(t, "soliq_qarzi", debt.CriterionCode, "code falls back to a slug of the name")
	assert.Equal(t, "financial_performance", debt.CategoryCode)
	assert.Equal(t, "yo'q", debt.RawValue)
}

func TestReytingFetchDetail_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": false, "data": null}`)
	}))
	defer srv.Close()

	src := NewReyting(newTestClient(), srv.URL, 0, 100)
	detail, err := src.FetchDetail(context.Background(), "999999999")
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestParseBallar_UnknownAgencyAndMissingName(t *testing.T) {
	data := map[string]any{
		"ballar": map[string]any{
			"yangi": map[string]any{"data": []any{
				map[string]any{"key": "yangi_indicator", "nomi_ru": "Новый критерий", "ball": 1.0},
				map[string]any{"key": "nameless", "qiymat": "5"},
			}},
		},
	}

	obs := parseBallar(data)
	require.Len(t, obs, 1, "indicators without a name are dropped")
	assert.Equal(t, "competitiveness", obs[0].CategoryCode)
	assert.Equal(t, "yangi_indicator", obs[0].CriterionCode)
}
