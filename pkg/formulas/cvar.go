package formulas

import (
	"math"
	"sort"
)

// CVaR calculates Conditional Value at Risk at the given confidence level.
// CVaR is the expected loss given that the loss exceeds the VaR threshold.
//
// Returns are historical period returns; negative values are losses. For 95%
// confidence, the result is the average of the worst 5% of returns.
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	if len(returns) == 1 {
		return returns[0]
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	tailProbability := 1.0 - confidence
	tailCount := int(math.Ceil(float64(len(sorted)) * tailProbability))
	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	sum := 0.0
	for _, r := range sorted[:tailCount] {
		sum += r
	}

	return sum / float64(tailCount)
}

// PortfolioCVaR calculates CVaR of the weighted portfolio return series.
// Per-asset return series must share a common index; missing weights count
// as zero exposure.
func PortfolioCVaR(weights map[string]float64, returns map[string][]float64, confidence float64) float64 {
	length := 0
	for _, series := range returns {
		if length == 0 || len(series) < length {
			length = len(series)
		}
	}
	if length == 0 {
		return 0.0
	}

	portfolio := make([]float64, length)
	for symbol, series := range returns {
		w := weights[symbol]
		if w == 0 {
			continue
		}
		for i := 0; i < length; i++ {
			portfolio[i] += w * series[i]
		}
	}

	return CVaR(portfolio, confidence)
}
