package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCVaR(t *testing.T) {
	tests := []struct {
		name       string
		returns    []float64
		confidence float64
		want       float64
	}{
		{
			name:       "worst ten percent of ten observations",
			returns:    []float64{-0.10, -0.05, -0.02, 0.0, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06},
			confidence: 0.90,
			want:       -0.10,
		},
		{
			name:       "worst two of ten at eighty percent",
			returns:    []float64{-0.10, -0.06, -0.02, 0.0, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06},
			confidence: 0.80,
			want:       -0.08, // mean of -0.10 and -0.06
		},
		{
			name:       "single observation",
			returns:    []float64{0.02},
			confidence: 0.95,
			want:       0.02,
		},
		{
			name:       "empty",
			returns:    nil,
			confidence: 0.95,
			want:       0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CVaR(tt.returns, tt.confidence), 1e-9)
		})
	}
}

func TestPortfolioCVaR(t *testing.T) {
	weights := map[string]float64{"A": 0.5, "B": 0.5}
	returns := map[string][]float64{
		"A": {-0.10, 0.02, 0.04},
		"B": {-0.02, 0.01, 0.02},
	}

	// Worst portfolio return is 0.5*-0.10 + 0.5*-0.02 = -0.06
	got := PortfolioCVaR(weights, returns, 0.90)
	assert.InDelta(t, -0.06, got, 1e-9)
}
