// Package cdo implements the HTTP client for the NOAA Climate Data Online
// (CDO) v2 web service. Requests are context-aware, share one rate
// limiter, page through large result sets and retry on transient errors
// (transport failures, 429, 5xx).
package cdo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/derickschaefer/dailywx/internal/metrics"
	"github.com/derickschaefer/dailywx/internal/util"
)

const (
	DefaultBaseURL = "https://www.ncei.noaa.gov/cdo-web/api/v2/"
	DefaultDataset = "GHCND"
	DefaultStation = "GHCND:USW00023174"
	DefaultLimit   = 1000
	DefaultRetries = 5
	DefaultBackoff = 2 * time.Second
	DefaultRate    = 4.0 // CDO allows 5 requests per second per token
)

// DefaultDataTypes are the GHCND element codes the pipeline understands.
var DefaultDataTypes = []string{"TMAX", "TMIN", "PRCP", "AWND"}

// Options tune a Client. Zero fields take the defaults above.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Rate    float64 // requests per second
	Retries int     // total attempts per request
	Backoff time.Duration
	Metrics *metrics.Metrics
}

// Client is the CDO API HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	metrics    *metrics.Metrics
}

// NewClient creates a Client that authenticates with token.
func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Retries < 1 {
		opts.Retries = DefaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	burst := int(opts.Rate)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: opts.BaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), burst),
		retries: opts.Retries,
		backoff: opts.Backoff,
		metrics: opts.Metrics,
	}
}

// ─── Data ─────────────────────────────────────────────────────────────────────

// Observation is one element value for one station and day.
type Observation struct {
	Date       string  `json:"date"`
	DataType   string  `json:"datatype"`
	Station    string  `json:"station"`
	Attributes string  `json:"attributes"`
	Value      float64 `json:"value"`
}

// Query selects observations. Start and End are inclusive YYYY-MM-DD dates.
// Units is passed through when set ("metric" or "standard"); leaving it
// empty keeps GHCND values in tenths of a unit.
type Query struct {
	Dataset   string
	Station   string
	Start     string
	End       string
	DataTypes []string
	Units     string
	Limit     int
}

type dataResponse struct {
	Metadata struct {
		ResultSet struct {
			Offset int `json:"offset"`
			Count  int `json:"count"`
			Limit  int `json:"limit"`
		} `json:"resultset"`
	} `json:"metadata"`
	Results []Observation `json:"results"`
}

// Data fetches every observation matching q, following the offset/limit
// paging until offset+limit exceeds the reported result count.
func (c *Client) Data(ctx context.Context, q Query) ([]Observation, error) {
	if q.Dataset == "" {
		q.Dataset = DefaultDataset
	}
	if q.Station == "" {
		q.Station = DefaultStation
	}
	if len(q.DataTypes) == 0 {
		q.DataTypes = DefaultDataTypes
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	var all []Observation
	offset := 1
	for {
		params := url.Values{}
		params.Set("datasetid", q.Dataset)
		params.Set("stationid", q.Station)
		params.Set("startdate", q.Start)
		params.Set("enddate", q.End)
		params.Set("limit", strconv.Itoa(q.Limit))
		params.Set("offset", strconv.Itoa(offset))
		for _, dt := range q.DataTypes {
			params.Add("datatypeid", dt)
		}
		if q.Units != "" {
			params.Set("units", q.Units)
		}

		var page dataResponse
		if err := c.get(ctx, "data", params, &page); err != nil {
			return nil, fmt.Errorf("data %s %s..%s offset %d: %w", q.Station, q.Start, q.End, offset, err)
		}
		c.metrics.Page()
		all = append(all, page.Results...)

		count := page.Metadata.ResultSet.Count
		slog.Debug("cdo page", "station", q.Station, "offset", offset, "results", len(page.Results), "count", count)
		if offset+q.Limit > count {
			break
		}
		offset += q.Limit
	}
	return all, nil
}

// Range fetches the default data types for one station between start and
// end inclusive.
func (c *Client) Range(ctx context.Context, station, start, end string) ([]Observation, error) {
	return c.Data(ctx, Query{Station: station, Start: start, End: end})
}

// MonthAcrossYears fetches calendar month month of every year from
// fromYear through toYear, one request range per year.
func (c *Client) MonthAcrossYears(ctx context.Context, station string, fromYear, toYear, month int) ([]Observation, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month must be 1-12, got %d", month)
	}
	if fromYear > toYear {
		return nil, fmt.Errorf("from-year %d is after to-year %d", fromYear, toYear)
	}
	var all []Observation
	for y := fromYear; y <= toYear; y++ {
		first, last := util.MonthBounds(y, time.Month(month))
		part, err := c.Range(ctx, station, first, last)
		if err != nil {
			return nil, err
		}
		all = append(all, part...)
	}
	return all, nil
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// get performs a GET request to the CDO API, handling rate limiting and
// retries. Attempt n waits backoff*(n-1) before it is sent.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + endpoint + "?" + params.Encode()
	slog.Debug("cdo request", "url", reqURL)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			wait := c.backoff * time.Duration(attempt-1)
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", wait, "err", lastErr)
			c.metrics.Request("retry")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("token", c.token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "dailywx/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}
		slog.Debug("cdo response", "status", resp.StatusCode, "bytes", len(body))

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			c.metrics.Request("error")
			var apiErr struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(body, &apiErr)
			if apiErr.Message != "" {
				return fmt.Errorf("CDO error %d: %s", resp.StatusCode, apiErr.Message)
			}
			return fmt.Errorf("CDO error %d: %s", resp.StatusCode, snippet(body))
		}

		// an empty result set is returned as "{}"
		if err := json.Unmarshal(body, out); err != nil {
			c.metrics.Request("error")
			return fmt.Errorf("decoding response: %w", err)
		}
		c.metrics.Request("ok")
		return nil
	}
	c.metrics.Request("error")
	return fmt.Errorf("after %d attempts: %w", c.retries, lastErr)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 220 {
		s = s[:220]
	}
	return s
}
