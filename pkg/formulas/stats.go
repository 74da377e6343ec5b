// Package formulas provides pure statistical helpers shared by the
// optimization and simulation modules.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily observations.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// DailyReturns converts a price series into simple daily returns.
// Returns an empty slice when fewer than two prices are available.
func DailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, prices[i]/prices[i-1]-1.0)
	}
	return returns
}

// AnnualizeReturn compounds a mean daily return to an annual figure.
// Formula: (1 + r)^252 - 1
func AnnualizeReturn(meanDaily float64) float64 {
	return math.Pow(1.0+meanDaily, TradingDaysPerYear) - 1.0
}

// AnnualizeVolatility scales a daily standard deviation to annual.
func AnnualizeVolatility(dailyStdDev float64) float64 {
	return dailyStdDev * math.Sqrt(TradingDaysPerYear)
}

// Clamp restricts a value to the [min, max] range.
func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}
