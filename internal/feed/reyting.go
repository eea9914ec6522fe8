package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
	"github.com/uzbuild/market-intel/internal/rating"
)

// agencyCategory maps the detail response's agency groupings to rating
// category codes. Unknown agencies land in competitiveness.
var agencyCategory = map[string]string{
	"mehnat":     "qualified_specialists",
	"soliq":      "financial_performance",
	"inspeksiya": "quality_of_work",
	"tajriba":    "work_experience",
	"texnika":    "technical_base",
	"raqobat":    "competitiveness",
}

// Reyting pages one company-type listing of the rating API.
// Type 0 is general construction, type 2 is roads and bridges.
type Reyting struct {
	client  *Client
	baseURL string
	typeID  int
	perPage int
	log     *zap.Logger
}

// NewReyting creates a listing client for one company type.
func NewReyting(client *Client, baseURL string, typeID, perPage int) *Reyting {
	if perPage <= 0 {
		perPage = 100
	}
	return &Reyting{
		client:  client,
		baseURL: baseURL,
		typeID:  typeID,
		perPage: perPage,
		log: zap.L().With(
			zap.String("component", "feed.reyting"),
			zap.Int("type", typeID)),
	}
}

// Name identifies the feed in job accounting.
func (r *Reyting) Name() model.Source { return model.SourceReyting }

type listingEnvelope struct {
	Data struct {
		Total int                   `json:"total"`
		Data  []normalize.RawRecord `json:"data"`
	} `json:"data"`
}

// TotalPages probes the listing's total count with a one-row request.
func (r *Reyting) TotalPages(ctx context.Context) (int, error) {
	var env listingEnvelope
	err := r.client.GetJSON(ctx, r.baseURL+"/v2/category/all", url.Values{
		"type":    {strconv.Itoa(r.typeID)},
		"page":    {"1"},
		"perPage": {"1"},
	}, &env)
	if err != nil {
		return 0, err
	}

	pages := (env.Data.Total + r.perPage - 1) / r.perPage
	r.log.Info("listing probed",
		zap.Int("total_companies", env.Data.Total), zap.Int("total_pages", pages))
	return pages, nil
}

// FetchPage requests one listing page.
func (r *Reyting) FetchPage(ctx context.Context, page int) (*Page, error) {
	var env listingEnvelope
	err := r.client.GetJSON(ctx, r.baseURL+"/v2/category/all", url.Values{
		"type":    {strconv.Itoa(r.typeID)},
		"page":    {strconv.Itoa(page)},
		"perPage": {strconv.Itoa(r.perPage)},
	}, &env)
	if err != nil {
		return nil, err
	}
	return &Page{Number: page, Records: env.Data.Data}, nil
}

// Detail is one company's full rating breakdown plus the raw payload
// for snapshot storage.
type Detail struct {
	Observations []rating.Observation
	RawPayload   []byte
}

type detailEnvelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
}

// FetchDetail pulls and parses the per-indicator breakdown for one
// company. Returns nil when the feed has no detail data for the STIR.
func (r *Reyting) FetchDetail(ctx context.Context, stir string) (*Detail, error) {
	var env detailEnvelope
	err := r.client.GetJSON(ctx,
		fmt.Sprintf("%s/v2/category/get/%s", r.baseURL, url.PathEscape(stir)),
		url.Values{"type": {strconv.Itoa(r.typeID)}},
		&env,
	)
	if err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil {
		return nil, nil
	}

	raw, err := json.Marshal(env.Data)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: encode detail payload for %s", stir)
	}

	return &Detail{
		Observations: parseBallar(env.Data),
		RawPayload:   raw,
	}, nil
}

// parseBallar walks the "ballar" agency groupings and flattens each
// indicator into an Observation.
func parseBallar(data map[string]any) []rating.Observation {
	ballar, _ := data["ballar"].(map[string]any)
	var obs []rating.Observation

	for agency, v := range ballar {
		group, ok := v.(map[string]any)
		if !ok {
			continue
		}
		indicators, ok := group["data"].([]any)
		if !ok {
			continue
		}

		categoryCode, ok := agencyCategory[agency]
		if !ok {
			categoryCode = "competitiveness"
		}

		for _, iv := range indicators {
			ind, ok := iv.(map[string]any)
			if !ok {
				continue
			}

			name := firstString(ind, "nomi_ru", "nomi_uz", "nomi")
			if name == "" {
				continue
			}

			code := stringValue(ind["key"])
			if code == "" {
				code = normalize.SlugFromName(name)
			}

			obs = append(obs, rating.Observation{
				CriterionCode: code,
				CriterionName: name,
				CategoryCode:  categoryCode,
				SourceAgency:  stringValue(ind["masul_ru"]),
				RawValue:      stringValue(ind["qiymat"]),
				Earned:        floatValue(ind["ball"]),
				Max:           floatValue(ind["max_ball"]),
			})
		}
	}
	return obs
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringValue(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func floatValue(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
