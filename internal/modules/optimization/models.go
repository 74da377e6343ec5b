// Package optimization implements the allocation core: view encoding,
// Black-Litterman posterior blending, mean-variance and hierarchical
// risk parity solvers, and constraint repair of the resulting weights.
package optimization

import "encoding/json"

// Allocation strategies
const (
	StrategyMaxSharpe      = "max_sharpe"
	StrategyMinVolatility  = "min_volatility"
	StrategyHRP            = "hrp"
	StrategyBlackLitterman = "black_litterman"
)

// View types
const (
	ViewTypeAbsolute = "absolute"
	ViewTypeRelative = "relative"
)

const (
	// DefaultTau scales view uncertainty. Smaller tau means more
	// confidence in the views.
	DefaultTau = 0.05

	// DefaultRiskFreeRate is used for Sharpe ratios when the caller
	// does not supply a rate.
	DefaultRiskFreeRate = 0.02

	// MaxRedistributionIterations bounds the constraint repair loop.
	// Observed sufficient for realistic portfolios of any size; tunable.
	MaxRedistributionIterations = 100

	// RedistributionTolerance is the convergence tolerance of the
	// repair loop.
	RedistributionTolerance = 1e-6

	// WeightDecimalPlaces rounds final weights for presentation
	// stability. Cosmetic, distinct from the convergence tolerance.
	WeightDecimalPlaces = 5
)

// View is an investor opinion about future returns.
//
// Absolute views state "Asset will return Value". Relative views state
// "Asset1 will outperform Asset2 by Value".
type View struct {
	Type   string  `json:"type"`
	Asset  string  `json:"asset,omitempty"`
	Asset1 string  `json:"asset1,omitempty"`
	Asset2 string  `json:"asset2,omitempty"`
	Value  float64 `json:"value"`
}

// UnmarshalJSON accepts the long-form request shape alongside the
// compact one: "return" and "difference" alias "value", and a relative
// view may name its first asset with "asset" instead of "asset1".
func (v *View) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       string   `json:"type"`
		Asset      string   `json:"asset"`
		Asset1     string   `json:"asset1"`
		Asset2     string   `json:"asset2"`
		Value      *float64 `json:"value"`
		Return     *float64 `json:"return"`
		Difference *float64 `json:"difference"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.Type = raw.Type
	v.Asset = raw.Asset
	v.Asset1 = raw.Asset1
	v.Asset2 = raw.Asset2

	switch {
	case raw.Value != nil:
		v.Value = *raw.Value
	case raw.Return != nil:
		v.Value = *raw.Return
	case raw.Difference != nil:
		v.Value = *raw.Difference
	default:
		v.Value = 0
	}

	if v.Type == ViewTypeRelative && v.Asset1 == "" {
		v.Asset1 = raw.Asset
		v.Asset = ""
	}

	return nil
}

// Performance is the realized risk/return profile of a weight vector
type Performance struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}
