package yahoo

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// NativeClient wraps the go-yfinance library. It is used for quote
// lookups and ticker validation, where the library's batching support
// is more convenient than the raw chart API.
type NativeClient struct {
	log zerolog.Logger
}

// NewNativeClient creates a new native Yahoo Finance client
func NewNativeClient(log zerolog.Logger) *NativeClient {
	return &NativeClient{
		log: log.With().Str("client", "yahoo-native").Logger(),
	}
}

// GetCurrentPrice gets the current price for a symbol with retries
func (c *NativeClient) GetCurrentPrice(symbol string, maxRetries int) (*float64, error) {
	if maxRetries == 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		t, err := ticker.New(symbol)
		if err != nil {
			lastErr = fmt.Errorf("failed to create ticker: %w", err)
			if attempt < maxRetries-1 {
				waitTime := time.Duration(1<<uint(attempt)) * time.Second
				c.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", waitTime).Msg("Retrying")
				time.Sleep(waitTime)
				continue
			}
			return nil, lastErr
		}
		defer t.Close()

		quote, err := t.Quote()
		if err == nil && quote != nil {
			price := quote.RegularMarketPrice
			if price > 0 {
				return &price, nil
			}
		}

		if attempt < maxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", waitTime).Msg("Price was invalid, retrying")
			time.Sleep(waitTime)
			continue
		}

		lastErr = fmt.Errorf("failed to get valid price after %d attempts", maxRetries)
	}

	return nil, lastErr
}

// ValidateSymbols checks which of the given symbols resolve to real
// securities. Returns the valid subset in input order.
func (c *NativeClient) ValidateSymbols(symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = "5d"
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download quotes for validation: %w", err)
	}

	valid := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if bars, ok := result.Data[symbol]; ok && len(bars) > 0 {
			valid = append(valid, symbol)
			continue
		}
		if resErr, ok := result.Errors[symbol]; ok {
			c.log.Warn().Err(resErr).Str("symbol", symbol).Msg("Symbol failed validation")
		} else {
			c.log.Warn().Str("symbol", symbol).Msg("Symbol returned no data")
		}
	}

	return valid, nil
}

// GetBatchQuotes fetches last close prices for multiple symbols in one call
func (c *NativeClient) GetBatchQuotes(symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = "5d"
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download batch quotes: %w", err)
	}

	quotes := make(map[string]float64)
	for _, symbol := range symbols {
		if bars, ok := result.Data[symbol]; ok && len(bars) > 0 {
			quotes[symbol] = bars[len(bars)-1].Close
		} else if resErr, ok := result.Errors[symbol]; ok {
			c.log.Warn().Err(resErr).Str("symbol", symbol).Msg("Failed to get quote for symbol")
		}
	}

	return quotes, nil
}
