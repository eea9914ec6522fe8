package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/uzbuild/market-intel/internal/resilience"
)

// Client is a rate-limited JSON HTTP client shared by the feed
// implementations. Both upstream APIs sit behind SPA frontends and
// require Origin/Referer headers from the public site.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	origin    string
	referer   string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	UserAgent  string
	Origin     string
	Referer    string
	Timeout    time.Duration
	RatePerSec float64
}

// NewClient creates a Client with sane defaults for unset options.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "market-intel/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		userAgent: opts.UserAgent,
		origin:    opts.Origin,
		referer:   opts.Referer,
	}
}

// GetJSON performs a rate-limited GET and decodes the JSON response
// into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrapf(err, "feed: build GET %s", rawURL)
	}
	return c.do(req, out)
}

// PostJSON performs a rate-limited POST with a JSON body and decodes
// the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "feed: encode POST body for %s", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrapf(err, "feed: build POST %s", rawURL)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return eris.Wrap(err, "feed: rate limiter wait")
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures are retryable.
		return resilience.NewTransientError(eris.Wrapf(err, "feed: %s %s", req.Method, req.URL), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := eris.Errorf("feed: %s %s returned status %d", req.Method, req.URL, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "feed: decode response from %s", req.URL)
	}
	return nil
}
