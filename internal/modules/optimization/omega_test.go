package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOmegaProportionalToPrior(t *testing.T) {
	sigma := [][]float64{
		{0.04, 0.01},
		{0.01, 0.01},
	}

	// One absolute view on asset 0, one relative view 0 vs 1
	p := [][]float64{
		{1, 0},
		{1, -1},
	}

	omega, err := OmegaProportionalToPrior(p, sigma, 0.05)
	require.NoError(t, err)
	require.Len(t, omega, 2)

	// Absolute view: tau * var(asset0) = 0.05 * 0.04
	assert.InDelta(t, 0.002, omega[0][0], 1e-12)
	// Relative view: tau * (var0 + var1) = 0.05 * 0.05
	assert.InDelta(t, 0.0025, omega[1][1], 1e-12)

	// Strictly diagonal
	assert.Zero(t, omega[0][1])
	assert.Zero(t, omega[1][0])
}

func TestOmegaProportionalToPrior_ScalesWithTau(t *testing.T) {
	sigma := [][]float64{{0.04}}
	p := [][]float64{{1}}

	low, err := OmegaProportionalToPrior(p, sigma, 0.01)
	require.NoError(t, err)
	high, err := OmegaProportionalToPrior(p, sigma, 0.5)
	require.NoError(t, err)

	// Smaller tau means less view uncertainty
	assert.Less(t, low[0][0], high[0][0])
}

func TestOmegaProportionalToPrior_RequiresPickingMatrix(t *testing.T) {
	_, err := OmegaProportionalToPrior(nil, [][]float64{{0.04}}, 0.05)
	assert.ErrorIs(t, err, ErrPickingMatrixNotSet)
}

func TestOmegaProportionalToPrior_FloorsZeroVariance(t *testing.T) {
	sigma := [][]float64{{0.0}}
	p := [][]float64{{1}}

	omega, err := OmegaProportionalToPrior(p, sigma, 0.05)
	require.NoError(t, err)
	assert.Greater(t, omega[0][0], 0.0)
}
