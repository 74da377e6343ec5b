package allocation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_ExactFit(t *testing.T) {
	alloc := NewAllocator(zerolog.Nop())

	// 60% of 1000 at price 100 -> 6 shares, 40% at 50 -> 8 shares
	result, err := alloc.Allocate(
		map[string]float64{"AAA": 0.6, "BBB": 0.4},
		map[string]float64{"AAA": 100, "BBB": 50},
		1000,
	)
	require.NoError(t, err)

	assert.Equal(t, int64(6), result.Shares["AAA"])
	assert.Equal(t, int64(8), result.Shares["BBB"])
	assert.InDelta(t, 1000.0, result.Invested, 1e-9)
	assert.InDelta(t, 0.0, result.Leftover, 1e-9)
}

func TestAllocate_LeftoverCash(t *testing.T) {
	alloc := NewAllocator(zerolog.Nop())

	// 100% of 250 at price 99 -> 2 shares, 52 left over
	result, err := alloc.Allocate(
		map[string]float64{"AAA": 1.0},
		map[string]float64{"AAA": 99},
		250,
	)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Shares["AAA"])
	assert.InDelta(t, 52.0, result.Leftover, 1e-9)
}

func TestAllocate_SecondPassBuysLaggingAsset(t *testing.T) {
	alloc := NewAllocator(zerolog.Nop())

	// First pass: AAA floor(500/300)=1 share, BBB floor(500/40)=12
	// shares, leaving 220 in cash. AAA's deficit (200) beats BBB's
	// (20) but a second AAA share costs 300, so the cash buys one more
	// BBB and the loop stops once BBB overshoots its target.
	result, err := alloc.Allocate(
		map[string]float64{"AAA": 0.5, "BBB": 0.5},
		map[string]float64{"AAA": 300, "BBB": 40},
		1000,
	)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Shares["AAA"])
	assert.Equal(t, int64(13), result.Shares["BBB"])
	assert.InDelta(t, 180.0, result.Leftover, 1e-9)
}

func TestAllocate_DropsZeroWeights(t *testing.T) {
	alloc := NewAllocator(zerolog.Nop())

	result, err := alloc.Allocate(
		map[string]float64{"AAA": 1.0, "BBB": 0.0},
		map[string]float64{"AAA": 10, "BBB": 10},
		100,
	)
	require.NoError(t, err)

	assert.NotContains(t, result.Shares, "BBB")
	assert.Equal(t, int64(10), result.Shares["AAA"])
}

func TestAllocate_InvestedPlusLeftoverEqualsTotal(t *testing.T) {
	alloc := NewAllocator(zerolog.Nop())

	result, err := alloc.Allocate(
		map[string]float64{"AAA": 0.45, "BBB": 0.35, "CCC": 0.20},
		map[string]float64{"AAA": 173.21, "BBB": 61.07, "CCC": 9.93},
		10000,
	)
	require.NoError(t, err)

	assert.InDelta(t, 10000.0, result.Invested+result.Leftover, 1e-6)
	assert.GreaterOrEqual(t, result.Leftover, 0.0)
}

func TestAllocate_Validation(t *testing.T) {
	alloc := NewAllocator(zerolog.Nop())

	tests := []struct {
		name    string
		weights map[string]float64
		prices  map[string]float64
		total   float64
	}{
		{"zero total", map[string]float64{"AAA": 1.0}, map[string]float64{"AAA": 10}, 0},
		{"missing price", map[string]float64{"AAA": 1.0}, map[string]float64{}, 1000},
		{"zero price", map[string]float64{"AAA": 1.0}, map[string]float64{"AAA": 0}, 1000},
		{"no positive weights", map[string]float64{"AAA": 0.0}, map[string]float64{"AAA": 10}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alloc.Allocate(tt.weights, tt.prices, tt.total)
			assert.Error(t, err)
		})
	}
}
