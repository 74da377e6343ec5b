package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDailyReturns(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   []float64
	}{
		{
			name:   "steady growth",
			prices: []float64{100, 110, 121},
			want:   []float64{0.10, 0.10},
		},
		{
			name:   "decline",
			prices: []float64{100, 90},
			want:   []float64{-0.10},
		},
		{
			name:   "too short",
			prices: []float64{100},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DailyReturns(tt.prices)
			assert.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-10)
			}
		})
	}
}

func TestAnnualizeReturn(t *testing.T) {
	// 0.1% daily compounds to roughly 28.6% annually
	annual := AnnualizeReturn(0.001)
	assert.InDelta(t, math.Pow(1.001, 252)-1, annual, 1e-12)
	assert.Greater(t, annual, 0.28)
	assert.Less(t, annual, 0.29)
}

func TestAnnualizeVolatility(t *testing.T) {
	assert.InDelta(t, 0.01*math.Sqrt(252), AnnualizeVolatility(0.01), 1e-12)
}

func TestInverseVarianceWeights(t *testing.T) {
	weights := InverseVarianceWeights([]float64{0.01, 0.04})

	// Lower variance gets the larger weight, 4:1 here.
	assert.InDelta(t, 0.8, weights[0], 1e-9)
	assert.InDelta(t, 0.2, weights[1], 1e-9)
}

func TestInverseVarianceWeights_AllZero(t *testing.T) {
	weights := InverseVarianceWeights([]float64{0, 0, 0, 0})
	for _, w := range weights {
		assert.InDelta(t, 0.25, w, 1e-9)
	}
}

func TestCorrelationMatrixFromCovariance(t *testing.T) {
	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.01},
	}

	corr, err := CorrelationMatrixFromCovariance(cov)
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, corr[0][0], 1e-12)
	assert.InDelta(t, 1.0, corr[1][1], 1e-12)
	assert.InDelta(t, 0.5, corr[0][1], 1e-12)
	assert.InDelta(t, corr[0][1], corr[1][0], 1e-12)
}

func TestCorrelationMatrixFromCovariance_InvalidDiagonal(t *testing.T) {
	_, err := CorrelationMatrixFromCovariance([][]float64{
		{0.0, 0.01},
		{0.01, 0.01},
	})
	assert.Error(t, err)
}

func TestCorrelationToDistance(t *testing.T) {
	corr := [][]float64{
		{1.0, 0.5},
		{0.5, 1.0},
	}

	dist := CorrelationToDistance(corr)
	assert.InDelta(t, 0.0, dist[0][0], 1e-12)
	assert.InDelta(t, 1.0, dist[0][1], 1e-12) // sqrt(2*(1-0.5)) = 1
}
