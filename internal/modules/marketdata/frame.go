package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/portfolio-optimizer/internal/clients/yahoo"
	"github.com/aristath/portfolio-optimizer/pkg/formulas"
)

const dateLayout = "2006-01-02"

// PriceFrame holds aligned adjusted-close price series for a set of
// tickers. All series share the same dates: days on which any ticker is
// missing a price are dropped, so every column has equal length.
type PriceFrame struct {
	Tickers []string
	Dates   []time.Time
	Prices  map[string][]float64
}

// NewPriceFrame aligns per-ticker price series on their common trading
// days. Tickers with no data at all are excluded from the frame.
func NewPriceFrame(series map[string][]yahoo.HistoricalPrice) (*PriceFrame, error) {
	byDate := make(map[string]map[string]float64) // ticker -> date -> adjClose
	tickers := make([]string, 0, len(series))

	for ticker, prices := range series {
		if len(prices) == 0 {
			continue
		}
		dates := make(map[string]float64, len(prices))
		for _, p := range prices {
			dates[p.Date.Format(dateLayout)] = p.AdjClose
		}
		byDate[ticker] = dates
		tickers = append(tickers, ticker)
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("no price data for any ticker")
	}
	sort.Strings(tickers)

	// Intersect trading days across all tickers
	var common []string
	for date := range byDate[tickers[0]] {
		present := true
		for _, ticker := range tickers[1:] {
			if _, ok := byDate[ticker][date]; !ok {
				present = false
				break
			}
		}
		if present {
			common = append(common, date)
		}
	}

	if len(common) < 2 {
		return nil, fmt.Errorf("insufficient overlapping trading days: got %d, need at least 2", len(common))
	}
	sort.Strings(common)

	frame := &PriceFrame{
		Tickers: tickers,
		Dates:   make([]time.Time, len(common)),
		Prices:  make(map[string][]float64, len(tickers)),
	}

	for i, date := range common {
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date %s: %w", date, err)
		}
		frame.Dates[i] = d
	}

	for _, ticker := range tickers {
		col := make([]float64, len(common))
		for i, date := range common {
			col[i] = byDate[ticker][date]
		}
		frame.Prices[ticker] = col
	}

	return frame, nil
}

// Len returns the number of aligned trading days
func (f *PriceFrame) Len() int {
	return len(f.Dates)
}

// Series returns the price series for a ticker
func (f *PriceFrame) Series(ticker string) ([]float64, bool) {
	prices, ok := f.Prices[ticker]
	return prices, ok
}

// DailyReturns computes simple daily returns for every ticker, aligned
// in the frame's ticker order. Each series has Len()-1 entries.
func (f *PriceFrame) DailyReturns() map[string][]float64 {
	returns := make(map[string][]float64, len(f.Tickers))
	for _, ticker := range f.Tickers {
		returns[ticker] = formulas.DailyReturns(f.Prices[ticker])
	}
	return returns
}

// ReturnsMatrix returns daily returns as a row-major matrix with one
// row per trading day and one column per ticker, in ticker order.
func (f *PriceFrame) ReturnsMatrix() [][]float64 {
	returns := f.DailyReturns()
	n := f.Len() - 1
	matrix := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(f.Tickers))
		for j, ticker := range f.Tickers {
			row[j] = returns[ticker][i]
		}
		matrix[i] = row
	}
	return matrix
}

// MonthlyResample takes each ticker's last price within every calendar
// month. Used for beta estimation, which is conventionally done on
// monthly data.
func (f *PriceFrame) MonthlyResample() map[string][]float64 {
	// Collect month keys in chronological order
	var months []string
	seen := make(map[string]bool)
	for _, d := range f.Dates {
		key := d.Format("2006-01")
		if !seen[key] {
			seen[key] = true
			months = append(months, key)
		}
	}

	resampled := make(map[string][]float64, len(f.Tickers))
	for _, ticker := range f.Tickers {
		prices := f.Prices[ticker]
		last := make(map[string]float64)
		for i, d := range f.Dates {
			// Dates are sorted, so the final write wins
			last[d.Format("2006-01")] = prices[i]
		}
		series := make([]float64, len(months))
		for i, key := range months {
			series[i] = last[key]
		}
		resampled[ticker] = series
	}

	return resampled
}
