package domain

import "time"

// PriceQuote is a cached USD price for one coin.
type PriceQuote struct {
	Symbol    string
	CoinID    string // oracle identifier, e.g. "ethereum"
	USD       float64
	FetchedAt time.Time
}

// Age returns how old the quote is at now.
func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}
