// Package okx fetches OHLC candles from the OKX v5 public market-data API.
//
// Usage:
//
//	c := okx.NewClient(okx.Config{BaseURL: "https://www.okx.com", RatePerSec: 10})
//	candles, err := c.FetchCandles(ctx, "BTC-USDT", "30m", 120)
package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/archertao78/aistock/internal/model"
)

var (
	// ErrExternalService wraps transport failures, non-2xx statuses and
	// non-zero OKX response codes.
	ErrExternalService = errors.New("okx request failed")
	// ErrNoData means the response was well-formed but held no usable rows.
	ErrNoData = errors.New("no valid candle data")
)

const (
	defaultBaseURL = "https://www.okx.com"
	defaultTimeout = 10 * time.Second
	candlesPath    = "/api/v5/market/candles"

	// confirmIndex is the position of the bar-closed flag in a candle row.
	confirmIndex = 8
)

// Config configures a Client.
type Config struct {
	BaseURL    string        // default: https://www.okx.com
	RatePerSec float64       // outbound request pacing; <= 0 disables pacing
	Timeout    time.Duration // default: 10s
	HTTPClient *http.Client  // optional; overrides Timeout
}

// Client is a candle source backed by the OKX REST API. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an OKX client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{baseURL: base, httpClient: hc}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c
}

type candlesResponse struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data [][]json.RawMessage `json:"data"`
}

// FetchCandles returns the candles for instID at the given bar size, sorted
// oldest first. Rows with a non-finite or missing OHLC field are dropped.
func (c *Client) FetchCandles(ctx context.Context, instID, bar string, limit int) ([]model.Candle, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", ErrExternalService, err)
		}
	}

	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.baseURL + candlesPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrExternalService, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrExternalService, resp.StatusCode)
	}

	var parsed candlesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrExternalService, err)
	}
	if parsed.Code != "0" {
		msg := parsed.Msg
		if msg == "" {
			msg = "OKX returned non-zero code"
		}
		return nil, fmt.Errorf("%w: code %s: %s", ErrExternalService, parsed.Code, msg)
	}

	candles := ParseRows(parsed.Data)
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w from OKX for %s", ErrNoData, instID)
	}
	return candles, nil
}
