package pricing

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"paidchat/internal/domain"
)

// Cache holds the last fetched quote per coin id.
// Entries are never expired by the cache itself: stale quotes must stay
// available as a fallback, so freshness is judged by the oracle.
type Cache struct {
	c *ristretto.Cache[string, domain.PriceQuote]
}

// NewCache creates an empty quote cache.
func NewCache() (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, domain.PriceQuote]{
		NumCounters:        10_000,
		MaxCost:            1_000,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create price cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get returns the cached quote for coinID.
func (c *Cache) Get(coinID string) (domain.PriceQuote, bool) {
	return c.c.Get(coinID)
}

// Set stores q under its coin id and waits until it is visible to Get.
func (c *Cache) Set(q domain.PriceQuote) {
	c.c.Set(q.CoinID, q, 1)
	c.c.Wait()
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.c.Clear()
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
