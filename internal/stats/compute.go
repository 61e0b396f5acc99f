// Package stats summarizes recorded exchanges per agent.
package stats

import (
	"math"
	"sort"

	"paidchat/internal/domain"
)

// computeFromExchanges summarizes exchanges of one agent.
// Exchanges are sorted by CreatedAt ASC, ExchangeID ASC before computing
// order-dependent values (MaxTimeoutStreak).
func computeFromExchanges(agentID string, exchanges []*domain.Exchange) *domain.AgentStats {
	n := len(exchanges)
	if n == 0 {
		return &domain.AgentStats{AgentID: agentID}
	}

	sorted := make([]*domain.Exchange, n)
	copy(sorted, exchanges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt != sorted[j].CreatedAt {
			return sorted[i].CreatedAt < sorted[j].CreatedAt
		}
		return sorted[i].ExchangeID < sorted[j].ExchangeID
	})

	users := make(map[string]struct{})
	latencies := make([]float64, n)
	wins, timeouts := 0, 0
	peak := 0.0
	for i, e := range sorted {
		users[e.UserID] = struct{}{}
		latencies[i] = float64(e.ResponseLatency)
		if e.Won {
			wins++
		}
		if e.TimedOut {
			timeouts++
		}
		peak = math.Max(peak, math.Max(e.Multiplier, e.NextMultiplier))
	}

	mean := computeMean(latencies)
	sortedLatencies := make([]float64, n)
	copy(sortedLatencies, latencies)
	sort.Float64s(sortedLatencies)

	return &domain.AgentStats{
		AgentID:          agentID,
		Exchanges:        n,
		Users:            len(users),
		Wins:             wins,
		Timeouts:         timeouts,
		TimeoutRate:      computeRate(timeouts, n),
		LatencyMeanMs:    mean,
		LatencyMedianMs:  computePercentile(sortedLatencies, 0.50),
		LatencyP90Ms:     computePercentile(sortedLatencies, 0.90),
		LatencyStddevMs:  computeStddev(latencies, mean),
		MaxTimeoutStreak: computeMaxTimeoutStreak(sorted),
		PeakMultiplier:   peak,
		FirstAt:          sorted[0].CreatedAt,
		LastAt:           sorted[n-1].CreatedAt,
	}
}

func computeRate(k, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(k) / float64(total)
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation. sorted must be ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxTimeoutStreak finds the longest run of consecutive timeouts.
// Exchanges must be in chronological order.
func computeMaxTimeoutStreak(exchanges []*domain.Exchange) int {
	maxStreak, current := 0, 0
	for _, e := range exchanges {
		if !e.TimedOut {
			current = 0
			continue
		}
		current++
		if current > maxStreak {
			maxStreak = current
		}
	}
	return maxStreak
}
