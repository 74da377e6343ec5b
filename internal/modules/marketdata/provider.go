package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/portfolio-optimizer/internal/clients/yahoo"
)

// maxConcurrentFetches bounds parallel Yahoo Finance requests
const maxConcurrentFetches = 4

// Provider supplies aligned historical prices for a set of tickers
type Provider interface {
	FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*PriceFrame, error)
}

// YahooProvider fetches prices concurrently from Yahoo Finance.
// Tickers that return errors or no data are dropped from the frame
// rather than failing the whole request.
type YahooProvider struct {
	client yahoo.HistoryClient
	log    zerolog.Logger
}

// NewYahooProvider creates a provider backed by a Yahoo Finance client
func NewYahooProvider(client yahoo.HistoryClient, log zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		client: client,
		log:    log.With().Str("component", "yahoo_provider").Logger(),
	}
}

// FetchPrices downloads daily prices for all tickers in parallel and
// aligns them on common trading days.
func (p *YahooProvider) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*PriceFrame, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers requested")
	}

	var mu sync.Mutex
	series := make(map[string][]yahoo.HistoricalPrice, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			prices, err := p.client.GetHistoricalPrices(ticker, start, end)
			if err != nil {
				p.log.Warn().Err(err).Str("ticker", ticker).Msg("Dropping ticker, fetch failed")
				return nil
			}
			if len(prices) == 0 {
				p.log.Warn().Str("ticker", ticker).Msg("Dropping ticker, no data in range")
				return nil
			}

			mu.Lock()
			series[ticker] = prices
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("price fetch cancelled: %w", err)
	}

	frame, err := NewPriceFrame(series)
	if err != nil {
		return nil, fmt.Errorf("failed to build price frame: %w", err)
	}

	p.log.Info().
		Int("requested", len(tickers)).
		Int("resolved", len(frame.Tickers)).
		Int("days", frame.Len()).
		Msg("Fetched price frame")

	return frame, nil
}

// CachedProvider serves prices from the SQLite cache when the cached
// window covers the request, falling back to the remote provider and
// refreshing the cache otherwise.
type CachedProvider struct {
	remote Provider
	repo   *PriceRepository
	log    zerolog.Logger
}

// NewCachedProvider wraps a remote provider with the price cache
func NewCachedProvider(remote Provider, repo *PriceRepository, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		remote: remote,
		repo:   repo,
		log:    log.With().Str("component", "cached_provider").Logger(),
	}
}

// FetchPrices returns cached data when every ticker's cache extends to
// within a few days of the requested end, otherwise refetches remotely.
func (c *CachedProvider) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*PriceFrame, error) {
	series := make(map[string][]yahoo.HistoricalPrice, len(tickers))
	allCovered := true

	for _, ticker := range tickers {
		latest, err := c.repo.LatestDate(ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to check cache for %s: %w", ticker, err)
		}

		// Weekends mean the last trading day can trail the requested
		// end by a few days without the cache being stale.
		if latest.IsZero() || latest.Before(end.AddDate(0, 0, -4)) {
			allCovered = false
			break
		}

		prices, err := c.repo.GetPrices(ticker, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache for %s: %w", ticker, err)
		}
		if len(prices) == 0 {
			allCovered = false
			break
		}
		series[ticker] = prices
	}

	if allCovered {
		frame, err := NewPriceFrame(series)
		if err == nil {
			c.log.Debug().Int("tickers", len(frame.Tickers)).Msg("Served prices from cache")
			return frame, nil
		}
		c.log.Warn().Err(err).Msg("Cache alignment failed, refetching")
	}

	frame, err := c.remote.FetchPrices(ctx, tickers, start, end)
	if err != nil {
		return nil, err
	}

	for _, ticker := range frame.Tickers {
		if err := c.repo.UpsertPrices(ticker, framePrices(frame, ticker)); err != nil {
			// Cache write failures are not fatal to the request
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache prices")
		}
	}

	return frame, nil
}

// framePrices reconstructs HistoricalPrice rows from a frame column for
// cache storage. Only date and adjusted close survive the round trip.
func framePrices(frame *PriceFrame, ticker string) []yahoo.HistoricalPrice {
	col := frame.Prices[ticker]
	prices := make([]yahoo.HistoricalPrice, len(col))
	for i := range col {
		prices[i] = yahoo.HistoricalPrice{
			Date:     frame.Dates[i],
			Close:    col[i],
			AdjClose: col[i],
		}
	}
	return prices
}
