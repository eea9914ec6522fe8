package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
)

// ETender pages the DealsList API on apietender.uzex.uz. The API
// paginates by row range: page 1 is rows 1..pageSize, page 2 is rows
// pageSize+1..2*pageSize.
type ETender struct {
	client   *Client
	url      string
	pageSize int
	log      *zap.Logger
}

// NewETender creates an ETender feed client.
func NewETender(client *Client, url string, pageSize int) *ETender {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &ETender{
		client:   client,
		url:      url,
		pageSize: pageSize,
		log:      zap.L().With(zap.String("component", "feed.etender")),
	}
}

// Name identifies the feed in job accounting.
func (e *ETender) Name() model.Source { return model.SourceETender }

type dealsListRequest struct {
	From       int  `json:"From"`
	To         int  `json:"To"`
	CurrencyID *int `json:"currencyId"`
	SystemID   int  `json:"System_Id"`
}

// TotalPages probes the first page; every row carries the feed's
// total_count.
func (e *ETender) TotalPages(ctx context.Context) (int, error) {
	page, err := e.FetchPage(ctx, 1)
	if err != nil {
		return 0, err
	}
	if len(page.Records) == 0 {
		return 0, nil
	}

	total, ok := page.Records[0]["total_count"].(float64)
	if !ok || total <= 0 {
		e.log.Warn("deals list response missing total_count")
		return 0, nil
	}

	pages := (int(total) + e.pageSize - 1) / e.pageSize
	e.log.Info("deals list probed",
		zap.Int("total_records", int(total)), zap.Int("total_pages", pages))
	return pages, nil
}

// FetchPage requests one row range. A range past the end of the data
// comes back as an empty array.
func (e *ETender) FetchPage(ctx context.Context, page int) (*Page, error) {
	req := dealsListRequest{
		From:     (page-1)*e.pageSize + 1,
		To:       page * e.pageSize,
		SystemID: 0,
	}

	var records []normalize.RawRecord
	if err := e.client.PostJSON(ctx, e.url, req, &records); err != nil {
		return nil, err
	}
	return &Page{Number: page, Records: records}, nil
}
