// Package simulation projects portfolio value paths with a Monte Carlo
// geometric Brownian motion model.
package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-optimizer/internal/modules/optimization"
	"github.com/aristath/portfolio-optimizer/pkg/formulas"
)

const (
	// DefaultNumSimulations is the number of Monte Carlo paths
	DefaultNumSimulations = 1000
	// DefaultTimeHorizon is one trading year in days
	DefaultTimeHorizon = formulas.TradingDaysPerYear
)

// Result holds per-day percentile bands and final-value statistics
type Result struct {
	Days      []int     `json:"days"`
	P10       []float64 `json:"p10"`
	P50       []float64 `json:"p50"`
	P90       []float64 `json:"p90"`
	FinalMin  float64   `json:"final_min"`
	FinalMax  float64   `json:"final_max"`
	FinalMean float64   `json:"final_mean"`
}

// MonteCarloSimulator simulates portfolio value paths. The portfolio is
// collapsed to a single GBM process using its expected return and
// volatility, so the per-asset covariance enters only through the
// portfolio variance.
type MonteCarloSimulator struct {
	rng *rand.Rand
	log zerolog.Logger
}

// NewMonteCarloSimulator creates a simulator seeded from the given seed.
// A fixed seed gives reproducible paths, which the tests rely on.
func NewMonteCarloSimulator(seed int64, log zerolog.Logger) *MonteCarloSimulator {
	return &MonteCarloSimulator{
		rng: rand.New(rand.NewSource(seed)),
		log: log.With().Str("component", "monte_carlo").Logger(),
	}
}

// Request configures one simulation run
type Request struct {
	Symbols         []string
	ExpectedReturns map[string]float64
	Covariance      [][]float64
	Weights         map[string]float64
	InitialValue    float64
	NumSimulations  int
	TimeHorizon     int
}

// Simulate runs the Monte Carlo projection.
//
// Each path follows S_t = S_{t-1} * exp((mu - 0.5*sigma^2) + sigma*Z)
// with daily mu and sigma derived from the annualized portfolio
// figures.
func (s *MonteCarloSimulator) Simulate(req Request) (*Result, error) {
	if len(req.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	if req.InitialValue <= 0 {
		return nil, fmt.Errorf("initial value must be positive, got %v", req.InitialValue)
	}

	numSims := req.NumSimulations
	if numSims <= 0 {
		numSims = DefaultNumSimulations
	}
	horizon := req.TimeHorizon
	if horizon <= 0 {
		horizon = DefaultTimeHorizon
	}
	if horizon < 2 {
		return nil, fmt.Errorf("time horizon must be at least 2 days, got %d", horizon)
	}

	perf := optimization.PortfolioPerformance(req.Weights, req.ExpectedReturns, req.Covariance, req.Symbols, 0)

	dt := 1.0 / float64(formulas.TradingDaysPerYear)
	dailyReturn := perf.ExpectedReturn * dt
	dailyVolatility := perf.Volatility * math.Sqrt(dt)
	drift := dailyReturn - 0.5*dailyVolatility*dailyVolatility

	// paths[t][sim] is the portfolio value of one path on day t
	paths := make([][]float64, horizon)
	paths[0] = make([]float64, numSims)
	for sim := 0; sim < numSims; sim++ {
		paths[0][sim] = req.InitialValue
	}

	for t := 1; t < horizon; t++ {
		paths[t] = make([]float64, numSims)
		for sim := 0; sim < numSims; sim++ {
			shock := s.rng.NormFloat64()
			paths[t][sim] = paths[t-1][sim] * math.Exp(drift+dailyVolatility*shock)
		}
	}

	result := &Result{
		Days: make([]int, horizon),
		P10:  make([]float64, horizon),
		P50:  make([]float64, horizon),
		P90:  make([]float64, horizon),
	}

	sorted := make([]float64, numSims)
	for t := 0; t < horizon; t++ {
		copy(sorted, paths[t])
		sort.Float64s(sorted)

		result.Days[t] = t
		result.P10[t] = percentile(sorted, 0.10)
		result.P50[t] = percentile(sorted, 0.50)
		result.P90[t] = percentile(sorted, 0.90)
	}

	final := paths[horizon-1]
	result.FinalMin = final[0]
	result.FinalMax = final[0]
	var sum float64
	for _, v := range final {
		result.FinalMin = math.Min(result.FinalMin, v)
		result.FinalMax = math.Max(result.FinalMax, v)
		sum += v
	}
	result.FinalMean = sum / float64(numSims)

	s.log.Debug().
		Int("simulations", numSims).
		Int("horizon", horizon).
		Float64("final_mean", result.FinalMean).
		Msg("Simulation complete")

	return result, nil
}

// percentile interpolates linearly between closest ranks on a sorted
// slice.
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
