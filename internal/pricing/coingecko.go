package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default CoinGecko settings.
const (
	DefaultBaseURL    = "https://api.coingecko.com/api/v3"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
	DefaultRatePerMin = 25
	demoAPIKeyHeader  = "x-cg-demo-api-key"
	backoffMultiplier = 2.0
)

// ErrMalformedResponse is returned when a price payload lacks a usable usd field.
var ErrMalformedResponse = errors.New("malformed price response")

// Fetcher fetches USD prices for coin ids.
type Fetcher interface {
	// FetchPrices returns the USD price for every id the source knows.
	// Ids without a valid positive price are omitted.
	FetchPrices(ctx context.Context, ids []string) (map[string]float64, error)
}

// CoinGecko fetches prices from the CoinGecko simple price endpoint.
type CoinGecko struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

// CoinGeckoOption configures CoinGecko.
type CoinGeckoOption func(*CoinGecko)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithAPIKey sets the demo API key header.
func WithAPIKey(key string) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.client = client
	}
}

// WithRateLimit limits outbound requests to perMinute with the given burst.
func WithRateLimit(perMinute float64, burst int) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.limiter = rate.NewLimiter(rate.Limit(perMinute/60), burst)
	}
}

// WithRetries sets the retry count and initial delay.
func WithRetries(n int, delay time.Duration) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.maxRetries = n
		c.retryDelay = delay
	}
}

// NewCoinGecko creates a CoinGecko fetcher.
func NewCoinGecko(opts ...CoinGeckoOption) *CoinGecko {
	c := &CoinGecko{
		baseURL:    DefaultBaseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(DefaultRatePerMin)/60), 5),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Fetcher = (*CoinGecko)(nil)

type simplePrice struct {
	USD *float64 `json:"usd"`
}

// FetchPrices calls /simple/price for ids. A payload in which none of the
// requested ids carries a valid price is reported as ErrMalformedResponse.
func (c *CoinGecko) FetchPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/simple/price?" + q.Encode()

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var raw map[string]simplePrice
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	prices := make(map[string]float64, len(raw))
	for id, p := range raw {
		if p.USD == nil || !validPrice(*p.USD) {
			continue
		}
		prices[id] = *p.USD
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no usd price for %s", ErrMalformedResponse, strings.Join(ids, ","))
	}
	return prices, nil
}

// get performs a GET with rate limiting and retries on transport errors,
// 429 and 5xx responses.
func (c *CoinGecko) get(ctx context.Context, endpoint string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * backoffMultiplier)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(demoAPIKeyHeader, c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
