package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/portfolio-optimizer/pkg/formulas"
)

// HRPOptimizer performs hierarchical risk parity allocation. It uses
// only variances and the correlation structure, so it never inverts the
// covariance matrix and tolerates ill-conditioned inputs that break the
// mean-variance solver.
type HRPOptimizer struct{}

// NewHRPOptimizer creates a new HRP optimizer
func NewHRPOptimizer() *HRPOptimizer {
	return &HRPOptimizer{}
}

// Optimize computes weights from daily return series.
//
// Inverse-variance weighting provides the risk parity base; weights of
// assets close to each other in correlation distance are then shrunk
// and the vector renormalized, approximating the quasi-diagonalization
// step of full HRP.
func (hrp *HRPOptimizer) Optimize(
	returns map[string][]float64,
	symbols []string,
) (map[string]float64, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	if len(symbols) == 1 {
		return map[string]float64{symbols[0]: 1.0}, nil
	}

	cov, err := hrp.covarianceMatrix(returns, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate covariance matrix: %w", err)
	}

	corrMatrix, err := formulas.CorrelationMatrixFromCovariance(cov)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate correlation matrix: %w", err)
	}

	variances := make([]float64, len(symbols))
	for i := range symbols {
		variances[i] = cov[i][i]
	}

	weights := formulas.InverseVarianceWeights(variances)
	weights = refineWithDistance(weights, formulas.CorrelationToDistance(corrMatrix))

	result := make(map[string]float64, len(symbols))
	for i, symbol := range symbols {
		result[symbol] = weights[i]
	}
	return result, nil
}

// covarianceMatrix builds the sample covariance matrix of the return
// series. Diagonal entries are floored so constant series keep the
// correlation conversion well defined.
func (hrp *HRPOptimizer) covarianceMatrix(
	returns map[string][]float64,
	symbols []string,
) ([][]float64, error) {
	n := len(symbols)

	var returnLength int
	for _, symbol := range symbols {
		ret, ok := returns[symbol]
		if !ok {
			return nil, fmt.Errorf("missing returns for symbol %s", symbol)
		}
		if returnLength == 0 {
			returnLength = len(ret)
		}
		if len(ret) != returnLength {
			return nil, fmt.Errorf("inconsistent return lengths")
		}
	}
	if returnLength < 2 {
		return nil, fmt.Errorf("need at least 2 return observations, got %d", returnLength)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		cov[i][i] = math.Max(formulas.Variance(returns[symbols[i]]), 1e-10)
		for j := i + 1; j < n; j++ {
			c := stat.Covariance(returns[symbols[i]], returns[symbols[j]], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	return cov, nil
}

// refineWithDistance shrinks weights of assets that sit close to other
// assets in correlation distance, then renormalizes. Negatively
// correlated assets are far apart in this metric, so diversifiers are
// never penalized.
func refineWithDistance(weights []float64, dist [][]float64) []float64 {
	// sqrt(2*(1-0.7)): assets correlated above 0.7 fall inside.
	const redundancyRadius = 0.77459667

	n := len(weights)
	refined := make([]float64, n)
	copy(refined, weights)

	for i := 0; i < n; i++ {
		adjustment := 1.0
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if d := dist[i][j]; d < redundancyRadius {
				// Equals 1 - 0.2*corr for the matching correlation.
				adjustment *= 0.8 + 0.1*d*d
			}
		}
		refined[i] *= math.Max(0.1, adjustment)
	}

	sum := floats.Sum(refined)
	if sum > 0 {
		floats.Scale(1.0/sum, refined)
	}
	return refined
}
