package optimization

import "math"

// PortfolioPerformance computes the return/volatility/Sharpe triple for
// a weight vector. Weights missing a ticker in the symbol order are
// treated as zero.
func PortfolioPerformance(
	weights map[string]float64,
	expectedReturns map[string]float64,
	covMatrix [][]float64,
	symbols []string,
	riskFreeRate float64,
) Performance {
	n := len(symbols)

	w := make([]float64, n)
	for i, symbol := range symbols {
		w[i] = weights[symbol]
	}

	var portfolioReturn float64
	for i, symbol := range symbols {
		portfolioReturn += expectedReturns[symbol] * w[i]
	}

	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * covMatrix[i][j]
		}
	}
	volatility := math.Sqrt(math.Max(variance, 0))

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (portfolioReturn - riskFreeRate) / volatility
	}

	return Performance{
		ExpectedReturn: portfolioReturn,
		Volatility:     volatility,
		SharpeRatio:    sharpe,
	}
}
