package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
)

const (
	// DefaultRetention keeps six years of daily bars, enough for a
	// five-year analysis window plus slack.
	DefaultRetention = 6 * 365 * 24 * time.Hour
	// refreshLookback is how far back the refresh fetch reaches. Short
	// on purpose: older rows are already cached.
	refreshLookback = 30 * 24 * time.Hour

	jobTimeout = 10 * time.Minute
)

// CacheMaintenanceJob purges stale rows from the price cache and
// refreshes recent bars for every cached symbol.
type CacheMaintenanceJob struct {
	repo      *marketdata.PriceRepository
	provider  marketdata.Provider
	retention time.Duration
	log       zerolog.Logger
}

// NewCacheMaintenanceJob creates the job. A non-positive retention
// falls back to DefaultRetention.
func NewCacheMaintenanceJob(repo *marketdata.PriceRepository, provider marketdata.Provider, retention time.Duration, log zerolog.Logger) *CacheMaintenanceJob {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &CacheMaintenanceJob{
		repo:      repo,
		provider:  provider,
		retention: retention,
		log:       log.With().Str("component", "cache_maintenance").Logger(),
	}
}

func (j *CacheMaintenanceJob) Name() string { return "cache_maintenance" }

// Run purges rows past the retention window, then fetches the last
// month of bars for each cached symbol through the caching provider so
// the cache stays warm between analysis requests.
func (j *CacheMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := time.Now()

	deleted, err := j.repo.PurgeOlderThan(now.Add(-j.retention))
	if err != nil {
		return err
	}

	symbols, err := j.repo.CachedSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		j.log.Debug().Msg("No cached symbols to refresh")
		return nil
	}

	// The provider drops failing tickers rather than erroring, so one
	// delisted symbol cannot wedge the whole refresh.
	if _, err := j.provider.FetchPrices(ctx, symbols, now.Add(-refreshLookback), now); err != nil {
		return err
	}

	j.log.Info().
		Int64("purged", deleted).
		Int("symbols", len(symbols)).
		Msg("Price cache maintenance complete")

	return nil
}
