package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// MVOptimizer performs mean-variance portfolio optimization.
//
// Constraint repair is not done here: the optimizer only enforces the
// long-only budget (weights >= 0, sum to 1) and leaves per-asset caps
// to the Redistributor.
type MVOptimizer struct{}

// NewMVOptimizer creates a new mean-variance optimizer
func NewMVOptimizer() *MVOptimizer {
	return &MVOptimizer{}
}

// Optimize solves for raw portfolio weights.
//
// Strategies:
//   - max_sharpe:     maximize (mu'w - rf) / sqrt(w'Sigma w)
//   - min_volatility: minimize w'Sigma w
//
// The budget constraint sum(w) = 1 is enforced with a quadratic
// penalty; the solution is projected to [0, 1] and normalized.
func (mvo *MVOptimizer) Optimize(
	expectedReturns map[string]float64,
	covMatrix [][]float64,
	symbols []string,
	strategy string,
	riskFreeRate float64,
) (map[string]float64, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	if len(covMatrix) != n {
		return nil, fmt.Errorf("covariance matrix size %d does not match symbols count %d", len(covMatrix), n)
	}
	for i := range covMatrix {
		if len(covMatrix[i]) != n {
			return nil, fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(covMatrix[i]), n)
		}
	}

	mu := make([]float64, n)
	for i, symbol := range symbols {
		ret, ok := expectedReturns[symbol]
		if !ok {
			return nil, fmt.Errorf("missing expected return for symbol %s", symbol)
		}
		mu[i] = ret
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, covMatrix[i][j])
		}
	}

	var objective func(x []float64) float64
	switch strategy {
	case StrategyMaxSharpe:
		objective = maxSharpeObjective(mu, sigma, riskFreeRate)
	case StrategyMinVolatility:
		objective = minVolatilityObjective(sigma)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}

	return mvo.solve(objective, symbols)
}

const budgetPenaltyWeight = 1000.0

func maxSharpeObjective(mu []float64, sigma *mat.Dense, riskFreeRate float64) func(x []float64) float64 {
	n := len(mu)
	return func(x []float64) float64 {
		xProj := projectLongOnly(x)

		var returnVal, variance float64
		for i := 0; i < n; i++ {
			returnVal += mu[i] * xProj[i]
			for j := 0; j < n; j++ {
				variance += xProj[i] * xProj[j] * sigma.At(i, j)
			}
		}
		stdDev := math.Sqrt(math.Max(variance, 1e-10))

		sum := 0.0
		for i := 0; i < n; i++ {
			sum += xProj[i]
		}

		obj := -(returnVal - riskFreeRate) / stdDev
		obj += budgetPenaltyWeight * (sum - 1.0) * (sum - 1.0)
		return obj
	}
}

func minVolatilityObjective(sigma *mat.Dense) func(x []float64) float64 {
	n, _ := sigma.Dims()
	return func(x []float64) float64 {
		xProj := projectLongOnly(x)

		var variance float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				variance += xProj[i] * xProj[j] * sigma.At(i, j)
			}
		}

		sum := 0.0
		for i := 0; i < n; i++ {
			sum += xProj[i]
		}

		return variance + budgetPenaltyWeight*(sum-1.0)*(sum-1.0)
	}
}

// solve minimizes the objective from an equal-weight start, trying
// Nelder-Mead first and BFGS with numeric gradients as fallback.
func (mvo *MVOptimizer) solve(objective func(x []float64) float64, symbols []string) (map[string]float64, error) {
	n := len(symbols)

	problem := optimize.Problem{Func: objective}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
		optimize.FunctionThreshold:   true,
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !successStatuses[result.Status] {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}

	xFinal := projectLongOnly(result.X)
	sum := 0.0
	for _, w := range xFinal {
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("optimization produced a zero weight vector")
	}

	weights := make(map[string]float64, n)
	for i, symbol := range symbols {
		weights[symbol] = xFinal[i] / sum
	}
	return weights, nil
}

// projectLongOnly clamps weights to [0, 1]
func projectLongOnly(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0.0, math.Min(1.0, x[i]))
	}
	return proj
}
