package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest() Request {
	return Request{
		Symbols:         []string{"A", "B"},
		ExpectedReturns: map[string]float64{"A": 0.12, "B": 0.06},
		Covariance: [][]float64{
			{0.09, 0.005},
			{0.005, 0.01},
		},
		DailyReturns: map[string][]float64{
			"A": {0.02, -0.03, 0.04, -0.02, 0.01},
			"B": {0.005, -0.004, 0.006, -0.005, 0.004},
		},
		Strategy: StrategyMaxSharpe,
	}
}

func TestService_Allocate_Strategies(t *testing.T) {
	svc := NewService(zerolog.Nop())

	for _, strategy := range []string{StrategyMaxSharpe, StrategyMinVolatility, StrategyHRP} {
		t.Run(strategy, func(t *testing.T) {
			req := baseRequest()
			req.Strategy = strategy

			result, err := svc.Allocate(req)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, sumWeights(result.Weights), 1e-4)
			assert.Greater(t, result.Performance.Volatility, 0.0)
		})
	}
}

func TestService_Allocate_BlackLitterman(t *testing.T) {
	svc := NewService(zerolog.Nop())

	req := baseRequest()
	req.Strategy = StrategyBlackLitterman
	req.Views = []View{{Type: ViewTypeAbsolute, Asset: "B", Value: 0.20}}

	result, err := svc.Allocate(req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sumWeights(result.Weights), 1e-4)
}

func TestService_Allocate_BlackLittermanRequiresViews(t *testing.T) {
	svc := NewService(zerolog.Nop())

	req := baseRequest()
	req.Strategy = StrategyBlackLitterman

	_, err := svc.Allocate(req)
	assert.ErrorIs(t, err, ErrViewsNotSet)
}

func TestService_Allocate_AppliesConstraints(t *testing.T) {
	svc := NewService(zerolog.Nop())

	req := baseRequest()
	req.Constraints = map[string]float64{"A": 0.2, "B": 0.2}

	result, err := svc.Allocate(req)
	require.NoError(t, err)

	// Caps sum to 0.4, so the result sums to 0.4, not 1
	assert.LessOrEqual(t, result.Weights["A"], 0.2+1e-5)
	assert.LessOrEqual(t, result.Weights["B"], 0.2+1e-5)
	assert.InDelta(t, 0.4, sumWeights(result.Weights), 1e-4)
}

func TestService_Allocate_RejectsUnknownConstraintTicker(t *testing.T) {
	svc := NewService(zerolog.Nop())

	req := baseRequest()
	req.Constraints = map[string]float64{"NOPE": 0.2}

	_, err := svc.Allocate(req)

	var unknownErr *UnknownAssetError
	assert.ErrorAs(t, err, &unknownErr)
}

func TestService_Allocate_Validation(t *testing.T) {
	svc := NewService(zerolog.Nop())

	req := baseRequest()
	req.Symbols = []string{"A"}
	_, err := svc.Allocate(req)
	assert.Error(t, err)

	req = baseRequest()
	req.Strategy = "kelly"
	_, err = svc.Allocate(req)
	assert.Error(t, err)
}
