package optimization

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
)

// Redistributor repairs a raw weight vector that violates per-asset
// maximum-weight constraints while preserving, as closely as feasible,
// the relative allocation the solver produced.
//
// Each pass clamps over-cap assets, then spreads the removed excess
// across assets still strictly below their cap, in proportion to each
// one's current weight. Caps are monotonically enforced once applied,
// so every pass shrinks the violation set or the total excess.
type Redistributor struct {
	log zerolog.Logger
}

// NewRedistributor creates a new constraint redistributor
func NewRedistributor(log zerolog.Logger) *Redistributor {
	return &Redistributor{
		log: log.With().Str("component", "redistributor").Logger(),
	}
}

// ValidateConstraints rejects caps that reference tickers outside the
// weight vector or fall outside [0, 1]. Validation lives at the
// boundary; Apply itself assumes sane inputs.
func (r *Redistributor) ValidateConstraints(weights map[string]float64, caps map[string]float64) error {
	for ticker, cap := range caps {
		if _, ok := weights[ticker]; !ok {
			return &UnknownAssetError{Asset: ticker}
		}
		if cap < 0 || cap > 1 {
			return &ConstraintRangeError{Asset: ticker, Cap: cap}
		}
	}
	return nil
}

// Apply returns a feasible weight vector. Unlisted tickers are
// implicitly capped at 1.0. When the caps sum to S < 1 the returned
// weights sum to S rather than 1; callers must check the sum instead of
// assuming normalization.
func (r *Redistributor) Apply(raw map[string]float64, caps map[string]float64) map[string]float64 {
	tickers := make([]string, 0, len(raw))
	for ticker := range raw {
		tickers = append(tickers, ticker)
	}
	// Deterministic iteration order
	sort.Strings(tickers)

	capFor := func(ticker string) float64 {
		if cap, ok := caps[ticker]; ok {
			return cap
		}
		return 1.0
	}

	weights := make(map[string]float64, len(raw))
	for ticker, w := range raw {
		weights[ticker] = w
	}

	iterations := 0
	for ; iterations < MaxRedistributionIterations; iterations++ {
		// Clamp over-cap assets and collect excess. A weight exactly
		// at its cap generates no excess.
		excess := 0.0
		clamped := false
		for _, ticker := range tickers {
			limit := capFor(ticker)
			if weights[ticker] > limit {
				excess += weights[ticker] - limit
				weights[ticker] = limit
				clamped = true
			}
		}

		if !clamped && excess < RedistributionTolerance {
			break
		}

		// Eligible assets sit strictly below their cap
		var eligible []string
		eligibleTotal := 0.0
		for _, ticker := range tickers {
			if capFor(ticker)-weights[ticker] > RedistributionTolerance {
				eligible = append(eligible, ticker)
				eligibleTotal += weights[ticker]
			}
		}

		// No room left anywhere: the caps sum to less than 1 and the
		// remaining excess is dropped. Accepted outcome, not an error.
		if len(eligible) == 0 || eligibleTotal <= 0 {
			if excess > RedistributionTolerance {
				r.log.Debug().
					Float64("dropped_excess", excess).
					Msg("Constraint caps sum below 1, weights will not total 1")
			}
			break
		}

		// Redistribute proportionally to each asset's current share of
		// the eligible total, so larger holdings absorb more.
		for _, ticker := range eligible {
			weights[ticker] += excess * weights[ticker] / eligibleTotal
		}
	}

	// Presentation rounding only, not the convergence tolerance
	scale := math.Pow(10, WeightDecimalPlaces)
	for ticker, w := range weights {
		weights[ticker] = math.Round(w*scale) / scale
	}

	r.log.Debug().
		Int("iterations", iterations).
		Int("constraints", len(caps)).
		Msg("Applied weight constraints")

	return weights
}
