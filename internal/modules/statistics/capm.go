package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
	"github.com/aristath/portfolio-optimizer/pkg/formulas"
)

const (
	// MarketBenchmarkSymbol is the S&P 500 index
	MarketBenchmarkSymbol = "^GSPC"
	// RiskFreeSymbol is the 13-week US Treasury Bill yield index
	RiskFreeSymbol = "^IRX"
)

// CapmCalculator estimates expected returns with the CAPM formula:
// E(Ri) = Rf + beta_i * (E(Rm) - Rf)
//
// The risk-free rate comes from the latest 3-month T-Bill yield, the
// market return from annualized S&P 500 daily returns over the analysis
// window, and betas from monthly-resampled return regressions against
// the benchmark.
type CapmCalculator struct {
	provider marketdata.Provider
	start    time.Time
	end      time.Time
	log      zerolog.Logger
}

// NewCapmCalculator creates a CAPM calculator over the given window
func NewCapmCalculator(provider marketdata.Provider, start, end time.Time, log zerolog.Logger) *CapmCalculator {
	return &CapmCalculator{
		provider: provider,
		start:    start,
		end:      end,
		log:      log.With().Str("component", "capm").Logger(),
	}
}

// RiskFreeRate returns the latest ^IRX close divided by 100
func (c *CapmCalculator) RiskFreeRate(ctx context.Context) (float64, error) {
	// The yield index can have sparse data, so look back two years to
	// guarantee at least one observation.
	frame, err := c.provider.FetchPrices(ctx, []string{RiskFreeSymbol}, c.end.AddDate(-2, 0, 0), c.end)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch risk-free rate: %w", err)
	}

	series, ok := frame.Series(RiskFreeSymbol)
	if !ok || len(series) == 0 {
		return 0, fmt.Errorf("no risk-free rate data available")
	}

	return series[len(series)-1] / 100.0, nil
}

// MarketReturn returns the annualized mean daily return of the benchmark
func (c *CapmCalculator) MarketReturn(ctx context.Context) (float64, error) {
	frame, err := c.provider.FetchPrices(ctx, []string{MarketBenchmarkSymbol}, c.start, c.end)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch market benchmark: %w", err)
	}

	series, ok := frame.Series(MarketBenchmarkSymbol)
	if !ok || len(series) < 2 {
		return 0, fmt.Errorf("insufficient market benchmark data")
	}

	return formulas.AnnualizeReturn(formulas.Mean(formulas.DailyReturns(series))), nil
}

// Betas computes each ticker's beta against the benchmark from
// monthly-resampled returns. Tickers with no overlapping months get a
// beta of zero.
func (c *CapmCalculator) Betas(ctx context.Context, frame *marketdata.PriceFrame) (map[string]float64, error) {
	marketFrame, err := c.provider.FetchPrices(ctx, []string{MarketBenchmarkSymbol}, c.start, c.end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market benchmark: %w", err)
	}

	marketMonths, marketReturns := monthlyReturns(marketFrame, MarketBenchmarkSymbol)

	betas := make(map[string]float64, len(frame.Tickers))
	for _, ticker := range frame.Tickers {
		months, returns := monthlyReturns(frame, ticker)

		stock, market := alignByMonth(months, returns, marketMonths, marketReturns)
		if len(stock) < 2 {
			c.log.Warn().Str("ticker", ticker).Msg("Too few overlapping months, beta set to zero")
			betas[ticker] = 0.0
			continue
		}

		betas[ticker] = beta(stock, market)
	}

	return betas, nil
}

// CalculateExpectedReturns applies the CAPM formula per ticker
func (c *CapmCalculator) CalculateExpectedReturns(ctx context.Context, frame *marketdata.PriceFrame) (map[string]float64, error) {
	if frame == nil || frame.Len() < 2 {
		return nil, fmt.Errorf("insufficient price history for return estimation")
	}

	riskFree, err := c.RiskFreeRate(ctx)
	if err != nil {
		return nil, err
	}

	marketReturn, err := c.MarketReturn(ctx)
	if err != nil {
		return nil, err
	}

	betas, err := c.Betas(ctx, frame)
	if err != nil {
		return nil, err
	}

	premium := marketReturn - riskFree
	expected := make(map[string]float64, len(frame.Tickers))
	for _, ticker := range frame.Tickers {
		expected[ticker] = riskFree + betas[ticker]*premium
	}

	c.log.Info().
		Float64("risk_free", riskFree).
		Float64("market_return", marketReturn).
		Int("tickers", len(expected)).
		Msg("Calculated CAPM expected returns")

	return expected, nil
}

// monthlyReturns resamples a ticker to last-of-month prices and returns
// month keys alongside month-over-month returns. The returned months
// are those of the return observations (the first month is consumed by
// differencing).
func monthlyReturns(frame *marketdata.PriceFrame, ticker string) ([]string, []float64) {
	var months []string
	seen := make(map[string]bool)
	for _, d := range frame.Dates {
		key := d.Format("2006-01")
		if !seen[key] {
			seen[key] = true
			months = append(months, key)
		}
	}
	sort.Strings(months)

	resampled := frame.MonthlyResample()[ticker]
	if len(resampled) < 2 {
		return nil, nil
	}

	returns := formulas.DailyReturns(resampled)
	return months[1:], returns
}

// alignByMonth inner-joins two monthly return series on month keys
func alignByMonth(monthsA []string, a []float64, monthsB []string, b []float64) ([]float64, []float64) {
	byMonth := make(map[string]float64, len(monthsB))
	for i, m := range monthsB {
		byMonth[m] = b[i]
	}

	var alignedA, alignedB []float64
	for i, m := range monthsA {
		if v, ok := byMonth[m]; ok {
			alignedA = append(alignedA, a[i])
			alignedB = append(alignedB, v)
		}
	}
	return alignedA, alignedB
}

// beta is cov(stock, market) / var(market), using the sample covariance
// over the population variance of the benchmark.
func beta(stock, market []float64) float64 {
	n := len(stock)
	meanStock := formulas.Mean(stock)
	meanMarket := formulas.Mean(market)

	var cov, variance float64
	for i := 0; i < n; i++ {
		cov += (stock[i] - meanStock) * (market[i] - meanMarket)
		variance += (market[i] - meanMarket) * (market[i] - meanMarket)
	}
	cov /= float64(n - 1)
	variance /= float64(n)

	if variance == 0 {
		return 0.0
	}
	return cov / variance
}
