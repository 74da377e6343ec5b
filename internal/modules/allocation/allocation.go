// Package allocation converts continuous portfolio weights into whole
// share counts for a given investment amount.
package allocation

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Result is the discrete allocation outcome
type Result struct {
	Shares    map[string]int64 `json:"shares"`
	Invested  float64          `json:"invested"`
	Leftover  float64          `json:"leftover"`
	Positions []Position       `json:"positions"`
}

// Position describes one ticker's discrete allocation
type Position struct {
	Symbol string  `json:"symbol"`
	Shares int64   `json:"shares"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Allocator turns target weights and latest prices into share counts
// using a greedy two-pass algorithm. The first pass buys the whole
// shares implied by each weight, the second spends remaining cash on
// whichever asset lags its target the most.
type Allocator struct {
	log zerolog.Logger
}

func NewAllocator(log zerolog.Logger) *Allocator {
	return &Allocator{log: log.With().Str("component", "allocation").Logger()}
}

// Allocate computes whole-share positions for the given weights.
// Tickers carrying zero weight are omitted from the result. Monetary
// arithmetic runs on decimals so leftover cash is exact to the cent.
func (a *Allocator) Allocate(weights map[string]float64, prices map[string]float64, totalValue float64) (*Result, error) {
	if totalValue <= 0 {
		return nil, fmt.Errorf("total portfolio value must be positive, got %v", totalValue)
	}

	symbols := make([]string, 0, len(weights))
	for symbol, weight := range weights {
		if weight <= 0 {
			continue
		}
		if price, ok := prices[symbol]; !ok || price <= 0 {
			return nil, fmt.Errorf("no usable price for %s", symbol)
		}
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no positive weights to allocate")
	}

	// Largest weight first, symbol as tie-break so runs are stable
	sort.Slice(symbols, func(i, j int) bool {
		if weights[symbols[i]] != weights[symbols[j]] {
			return weights[symbols[i]] > weights[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})

	total := decimal.NewFromFloat(totalValue)
	remaining := total
	shares := make(map[string]int64, len(symbols))

	// First pass: whole shares implied by each target weight
	for _, symbol := range symbols {
		price := decimal.NewFromFloat(prices[symbol])
		target := total.Mul(decimal.NewFromFloat(weights[symbol]))

		n := target.Div(price).Floor()
		cost := n.Mul(price)
		if cost.GreaterThan(remaining) {
			n = remaining.Div(price).Floor()
			cost = n.Mul(price)
		}

		shares[symbol] = n.IntPart()
		remaining = remaining.Sub(cost)
	}

	// Second pass: spend leftover cash on the asset furthest below its
	// target, one share at a time
	for {
		best := ""
		bestDeficit := decimal.Zero
		for _, symbol := range symbols {
			price := decimal.NewFromFloat(prices[symbol])
			if price.GreaterThan(remaining) {
				continue
			}
			held := price.Mul(decimal.NewFromInt(shares[symbol]))
			deficit := total.Mul(decimal.NewFromFloat(weights[symbol])).Sub(held)
			if deficit.GreaterThan(bestDeficit) {
				best = symbol
				bestDeficit = deficit
			}
		}
		if best == "" {
			break
		}
		shares[best]++
		remaining = remaining.Sub(decimal.NewFromFloat(prices[best]))
	}

	result := &Result{
		Shares:    make(map[string]int64, len(symbols)),
		Positions: make([]Position, 0, len(symbols)),
	}
	invested := decimal.Zero
	for _, symbol := range symbols {
		n := shares[symbol]
		if n == 0 {
			continue
		}
		price := decimal.NewFromFloat(prices[symbol])
		value := price.Mul(decimal.NewFromInt(n))
		invested = invested.Add(value)

		result.Shares[symbol] = n
		result.Positions = append(result.Positions, Position{
			Symbol: symbol,
			Shares: n,
			Price:  prices[symbol],
			Value:  value.InexactFloat64(),
			Weight: weights[symbol],
		})
	}
	result.Invested = invested.InexactFloat64()
	result.Leftover = remaining.InexactFloat64()

	a.log.Debug().
		Int("positions", len(result.Positions)).
		Float64("leftover", result.Leftover).
		Msg("Discrete allocation complete")

	return result, nil
}
