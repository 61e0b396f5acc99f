// Package pricing serves USD prices for native chain tokens with a cache and a
// chain of fallbacks so that pricing never blocks a send.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"paidchat/internal/domain"
	"paidchat/internal/observability"
)

// DefaultExpiry is how long a fetched quote counts as fresh.
const DefaultExpiry = 5 * time.Minute

// DefaultFallbackID is the coin whose price stands in when a token cannot be priced.
const DefaultFallbackID = "ethereum"

// DefaultLastKnownUSD is the constant used when every other tier fails.
const DefaultLastKnownUSD = 2500.0

// ErrPriceUnavailable is returned only when every fallback tier is exhausted.
var ErrPriceUnavailable = errors.New("price unavailable")

// Tier names the source that served a quote.
type Tier string

// Quote tiers in fallback order.
const (
	TierFresh         Tier = "fresh"
	TierFetched       Tier = "fetched"
	TierStale         Tier = "stale"
	TierFallbackCache Tier = "fallback_cache"
	TierEmergency     Tier = "emergency"
	TierConstant      Tier = "constant"
)

// Quote is a price together with the tier that produced it.
type Quote struct {
	domain.PriceQuote
	Tier Tier
}

// CoinIDs maps native token symbols to oracle coin identifiers.
var CoinIDs = map[string]string{
	"ETH":  "ethereum",
	"FLOW": "flow",
	"IP":   "story-2",
	"HBAR": "hedera-hashgraph",
	"TARA": "taraxa",
	"KITE": "kite",
	"POL":  "polygon-ecosystem-token",
	"BNB":  "binancecoin",
	"AVAX": "avalanche-2",
	"ARB":  "arbitrum",
	"OP":   "optimism",
}

// CoinID returns the oracle id for symbol, falling back to the lower-cased symbol.
func CoinID(symbol string) string {
	if id, ok := CoinIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// Options configures an Oracle.
type Options struct {
	Fetcher Fetcher
	Cache   *Cache
	// Expiry is the freshness window. Zero means DefaultExpiry.
	Expiry time.Duration
	// FallbackID is the stand-in coin. Empty means DefaultFallbackID.
	FallbackID string
	// LastKnownUSD is the final fallback. Zero disables it.
	LastKnownUSD float64
	Logger       *log.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Oracle serves USD prices per token symbol.
type Oracle struct {
	fetcher    Fetcher
	cache      *Cache
	expiry     time.Duration
	fallbackID string
	lastKnown  float64
	logger     *log.Logger
	now        func() time.Time
	group      singleflight.Group
}

// NewOracle creates an Oracle. The cache is required so callers own its lifecycle.
func NewOracle(opts Options) (*Oracle, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("pricing: fetcher is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("pricing: cache is required")
	}
	o := &Oracle{
		fetcher:    opts.Fetcher,
		cache:      opts.Cache,
		expiry:     opts.Expiry,
		fallbackID: opts.FallbackID,
		lastKnown:  opts.LastKnownUSD,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if o.expiry <= 0 {
		o.expiry = DefaultExpiry
	}
	if o.fallbackID == "" {
		o.fallbackID = DefaultFallbackID
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard, "", 0)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// GetPrice returns the USD price of symbol.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := o.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.USD, nil
}

// GetQuote returns a quote for symbol, walking the fallback tiers on failure:
// stale own entry, cached fallback coin, one emergency fallback fetch, and
// finally the last-known constant.
func (o *Oracle) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	id := CoinID(symbol)

	if cached, ok := o.cache.Get(id); ok && cached.Age(o.now()) < o.expiry {
		return o.serve(symbol, cached, TierFresh), nil
	}

	ids := []string{id}
	if id != o.fallbackID {
		ids = append(ids, o.fallbackID)
	}
	fetchErr := o.fetch(ctx, ids)
	if fetchErr == nil {
		if q, ok := o.cache.Get(id); ok && q.Age(o.now()) < o.expiry {
			return o.serve(symbol, q, TierFetched), nil
		}
		fetchErr = fmt.Errorf("%w: no usd price for %s", ErrMalformedResponse, id)
	}
	o.logger.Printf("price fetch for %s failed: %v", id, fetchErr)

	if stale, ok := o.cache.Get(id); ok {
		return o.serve(symbol, stale, TierStale), nil
	}
	if fb, ok := o.cache.Get(o.fallbackID); ok {
		return o.serve(symbol, fb, TierFallbackCache), nil
	}

	if err := o.fetch(ctx, []string{o.fallbackID}); err == nil {
		if fb, ok := o.cache.Get(o.fallbackID); ok {
			return o.serve(symbol, fb, TierEmergency), nil
		}
	} else {
		o.logger.Printf("emergency fetch for %s failed: %v", o.fallbackID, err)
	}

	if o.lastKnown > 0 {
		return o.serve(symbol, domain.PriceQuote{
			CoinID:    o.fallbackID,
			USD:       o.lastKnown,
			FetchedAt: o.now(),
		}, TierConstant), nil
	}
	return Quote{}, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, fetchErr)
}

func (o *Oracle) serve(symbol string, q domain.PriceQuote, tier Tier) Quote {
	observability.RecordPriceQuote(strings.ToUpper(symbol), string(tier))
	q.Symbol = strings.ToUpper(symbol)
	return Quote{PriceQuote: q, Tier: tier}
}

// fetch retrieves ids and stores every valid price. Identical concurrent
// fetches share one request.
func (o *Oracle) fetch(ctx context.Context, ids []string) error {
	key := strings.Join(sortedCopy(ids), ",")
	_, err, _ := o.group.Do(key, func() (interface{}, error) {
		prices, err := o.fetcher.FetchPrices(ctx, ids)
		observability.RecordPriceFetch(prices, err)
		if err != nil {
			return nil, err
		}
		fetchedAt := o.now()
		for coinID, usd := range prices {
			if !validPrice(usd) {
				continue
			}
			o.cache.Set(domain.PriceQuote{CoinID: coinID, USD: usd, FetchedAt: fetchedAt})
		}
		return nil, nil
	})
	return err
}

// Refresh fetches every symbol plus the fallback coin in one request.
func (o *Oracle) Refresh(ctx context.Context, symbols []string) error {
	seen := map[string]bool{o.fallbackID: true}
	ids := []string{o.fallbackID}
	for _, s := range symbols {
		id := CoinID(s)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return o.fetch(ctx, ids)
}

// Run keeps the cache warm by refreshing symbols once immediately and then
// at the expiry cadence until ctx is done.
func (o *Oracle) Run(ctx context.Context, symbols []string) {
	ticker := time.NewTicker(o.expiry)
	defer ticker.Stop()

	for {
		if err := o.Refresh(ctx, symbols); err != nil && ctx.Err() == nil {
			o.logger.Printf("price refresh failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
