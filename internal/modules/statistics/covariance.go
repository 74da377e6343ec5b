package statistics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
	"github.com/aristath/portfolio-optimizer/pkg/formulas"
)

// SampleCovariance computes the annualized sample covariance matrix of
// daily returns, ordered by the frame's tickers. The daily covariance
// is scaled by 252.
func SampleCovariance(frame *marketdata.PriceFrame) ([][]float64, error) {
	if frame == nil || frame.Len() < 3 {
		return nil, fmt.Errorf("insufficient price history for covariance estimation")
	}

	returns := frame.ReturnsMatrix()
	rows := len(returns)
	cols := len(frame.Tickers)

	data := mat.NewDense(rows, cols, nil)
	for i, row := range returns {
		data.SetRow(i, row)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	matrix := make([][]float64, cols)
	for i := 0; i < cols; i++ {
		matrix[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			matrix[i][j] = cov.At(i, j) * formulas.TradingDaysPerYear
		}
	}

	return matrix, nil
}

// AnnualizedVolatilities extracts per-ticker volatility from the
// covariance diagonal, in frame ticker order.
func AnnualizedVolatilities(frame *marketdata.PriceFrame, covariance [][]float64) map[string]float64 {
	vols := make(map[string]float64, len(frame.Tickers))
	for i, ticker := range frame.Tickers {
		vols[ticker] = sqrtOrZero(covariance[i][i])
	}
	return vols
}

// sqrtOrZero guards against tiny negative diagonals from floating
// point roundoff.
func sqrtOrZero(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
