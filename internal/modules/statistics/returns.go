// Package statistics estimates the return and risk inputs consumed by
// the portfolio optimizers: expected returns, betas and covariance.
package statistics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
	"github.com/aristath/portfolio-optimizer/pkg/formulas"
)

// ExpectedReturnCalculator estimates annualized expected returns per ticker
type ExpectedReturnCalculator interface {
	CalculateExpectedReturns(ctx context.Context, frame *marketdata.PriceFrame) (map[string]float64, error)
}

// MeanHistoricalCalculator annualizes each ticker's mean daily return.
// Formula: (1 + mean(daily returns))^252 - 1
type MeanHistoricalCalculator struct {
	log zerolog.Logger
}

// NewMeanHistoricalCalculator creates a mean historical return calculator
func NewMeanHistoricalCalculator(log zerolog.Logger) *MeanHistoricalCalculator {
	return &MeanHistoricalCalculator{
		log: log.With().Str("component", "mean_historical").Logger(),
	}
}

// CalculateExpectedReturns computes annualized mean historical returns
func (c *MeanHistoricalCalculator) CalculateExpectedReturns(_ context.Context, frame *marketdata.PriceFrame) (map[string]float64, error) {
	if frame == nil || frame.Len() < 2 {
		return nil, fmt.Errorf("insufficient price history for return estimation")
	}

	returns := frame.DailyReturns()
	expected := make(map[string]float64, len(frame.Tickers))
	for _, ticker := range frame.Tickers {
		expected[ticker] = formulas.AnnualizeReturn(formulas.Mean(returns[ticker]))
	}

	c.log.Debug().Int("tickers", len(expected)).Msg("Calculated mean historical returns")
	return expected, nil
}
