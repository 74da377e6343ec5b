package optimization

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Request carries everything one allocation needs. Requests are
// independent and the service keeps no state between calls, so
// concurrent allocations need no locking.
type Request struct {
	// Symbols fixes the instrument order for all vectors and matrices
	Symbols []string

	// ExpectedReturns is the prior estimate per symbol (annualized)
	ExpectedReturns map[string]float64

	// Covariance is the annualized covariance matrix in symbol order
	Covariance [][]float64

	// DailyReturns feeds the HRP strategy
	DailyReturns map[string][]float64

	// Strategy is one of max_sharpe, min_volatility, hrp, black_litterman
	Strategy string

	// Views are required for black_litterman and ignored otherwise
	Views []View

	// Constraints maps tickers to maximum weights in [0, 1]
	Constraints map[string]float64

	// RiskFreeRate defaults to DefaultRiskFreeRate when zero
	RiskFreeRate float64

	// Tau defaults to DefaultTau when zero
	Tau float64
}

// Result is a feasible weight vector with its performance triple
type Result struct {
	Weights     map[string]float64 `json:"weights"`
	Performance Performance        `json:"performance"`
}

// Service runs the allocation pipeline: solve raw weights for the
// requested strategy, then repair them against per-asset caps.
type Service struct {
	mv            *MVOptimizer
	hrp           *HRPOptimizer
	redistributor *Redistributor
	log           zerolog.Logger
}

// NewService creates an allocation service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		mv:            NewMVOptimizer(),
		hrp:           NewHRPOptimizer(),
		redistributor: NewRedistributor(log),
		log:           log.With().Str("component", "optimization_service").Logger(),
	}
}

// Allocate produces the final weight vector for a request.
//
// When the constraint caps sum below 1 the returned weights also sum
// below 1; callers must check the sum rather than assume normalization.
func (s *Service) Allocate(req Request) (*Result, error) {
	if len(req.Symbols) < 2 {
		return nil, fmt.Errorf("need at least 2 symbols, got %d", len(req.Symbols))
	}

	riskFreeRate := req.RiskFreeRate
	if riskFreeRate == 0 {
		riskFreeRate = DefaultRiskFreeRate
	}

	expectedReturns := req.ExpectedReturns
	covariance := req.Covariance

	var rawWeights map[string]float64
	var err error

	switch req.Strategy {
	case StrategyMaxSharpe, StrategyMinVolatility:
		rawWeights, err = s.mv.Optimize(expectedReturns, covariance, req.Symbols, req.Strategy, riskFreeRate)

	case StrategyHRP:
		rawWeights, err = s.hrp.Optimize(req.DailyReturns, req.Symbols)

	case StrategyBlackLitterman:
		expectedReturns, covariance, err = s.blendViews(req)
		if err != nil {
			return nil, err
		}
		rawWeights, err = s.mv.Optimize(expectedReturns, covariance, req.Symbols, StrategyMaxSharpe, riskFreeRate)

	default:
		return nil, fmt.Errorf("unknown strategy: %s", req.Strategy)
	}
	if err != nil {
		return nil, fmt.Errorf("strategy %s failed: %w", req.Strategy, err)
	}

	weights := rawWeights
	if len(req.Constraints) > 0 {
		if err := s.redistributor.ValidateConstraints(rawWeights, req.Constraints); err != nil {
			return nil, err
		}
		weights = s.redistributor.Apply(rawWeights, req.Constraints)
	}

	performance := PortfolioPerformance(weights, expectedReturns, covariance, req.Symbols, riskFreeRate)

	s.log.Info().
		Str("strategy", req.Strategy).
		Int("symbols", len(req.Symbols)).
		Int("views", len(req.Views)).
		Int("constraints", len(req.Constraints)).
		Float64("expected_return", performance.ExpectedReturn).
		Float64("volatility", performance.Volatility).
		Msg("Allocation complete")

	return &Result{
		Weights:     weights,
		Performance: performance,
	}, nil
}

// blendViews runs the Black-Litterman posterior transform over the
// request's prior and views.
func (s *Service) blendViews(req Request) (map[string]float64, [][]float64, error) {
	opts := []BlackLittermanOption{}
	if req.Tau > 0 {
		opts = append(opts, WithTau(req.Tau))
	}

	model, err := NewBlackLittermanModel(req.Symbols, req.ExpectedReturns, req.Covariance, req.Views, s.log, opts...)
	if err != nil {
		return nil, nil, err
	}

	posteriorReturns, err := model.PosteriorReturns()
	if err != nil {
		return nil, nil, err
	}

	posteriorCov, err := model.PosteriorCovariance()
	if err != nil {
		return nil, nil, err
	}

	return posteriorReturns, posteriorCov, nil
}
