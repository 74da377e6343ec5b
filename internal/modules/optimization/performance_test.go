package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortfolioPerformance(t *testing.T) {
	symbols := []string{"A", "B"}
	weights := map[string]float64{"A": 0.5, "B": 0.5}
	returns := map[string]float64{"A": 0.10, "B": 0.06}
	sigma := [][]float64{
		{0.04, 0.01},
		{0.01, 0.01},
	}

	perf := PortfolioPerformance(weights, returns, sigma, symbols, 0.02)

	assert.InDelta(t, 0.08, perf.ExpectedReturn, 1e-9)

	// w'Sigma w = 0.25*0.04 + 2*0.25*0.01 + 0.25*0.01 = 0.0175
	wantVol := math.Sqrt(0.0175)
	assert.InDelta(t, wantVol, perf.Volatility, 1e-9)
	assert.InDelta(t, (0.08-0.02)/wantVol, perf.SharpeRatio, 1e-9)
}

func TestPortfolioPerformance_ZeroVolatility(t *testing.T) {
	symbols := []string{"A"}
	perf := PortfolioPerformance(
		map[string]float64{"A": 1.0},
		map[string]float64{"A": 0.05},
		[][]float64{{0.0}},
		symbols,
		0.02,
	)

	assert.Zero(t, perf.Volatility)
	assert.Zero(t, perf.SharpeRatio)
}
