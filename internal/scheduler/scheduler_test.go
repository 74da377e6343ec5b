package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-optimizer/internal/clients/yahoo"
	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func (j *countingJob) Name() string { return j.name }

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())

	job := &countingJob{name: "test"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	job.err = errors.New("boom")
	assert.Error(t, s.RunNow(job))
}

func TestScheduler_AddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a schedule", &countingJob{name: "test"})
	assert.Error(t, err)
}

func TestScheduler_AddJobAcceptsSixFieldSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	assert.NoError(t, s.AddJob("0 0 6 * * MON-FRI", &countingJob{name: "refresh"}))
	assert.NoError(t, s.AddJob("@every 1h", &countingJob{name: "hourly"}))
}

type fakeProvider struct {
	tickers []string
}

func (p *fakeProvider) FetchPrices(_ context.Context, tickers []string, _, _ time.Time) (*marketdata.PriceFrame, error) {
	p.tickers = tickers
	return nil, nil
}

func newTestRepo(t *testing.T) *marketdata.PriceRepository {
	t.Helper()

	db, err := marketdata.OpenPriceDB(filepath.Join(t.TempDir(), "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return marketdata.NewPriceRepository(db, zerolog.Nop())
}

func TestCacheMaintenanceJob_PurgesAndRefreshes(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now().UTC().Truncate(24 * time.Hour)
	stale := now.Add(-8 * 365 * 24 * time.Hour)

	require.NoError(t, repo.UpsertPrices("AAA", []yahoo.HistoricalPrice{
		{Date: stale, Close: 90, AdjClose: 90},
		{Date: now.AddDate(0, 0, -1), Close: 100, AdjClose: 100},
	}))
	require.NoError(t, repo.UpsertPrices("BBB", []yahoo.HistoricalPrice{
		{Date: now.AddDate(0, 0, -1), Close: 50, AdjClose: 50},
	}))

	provider := &fakeProvider{}
	job := NewCacheMaintenanceJob(repo, provider, 0, zerolog.Nop())

	assert.Equal(t, "cache_maintenance", job.Name())
	require.NoError(t, job.Run())

	// Stale row purged, both symbols refreshed
	assert.ElementsMatch(t, []string{"AAA", "BBB"}, provider.tickers)

	prices, err := repo.GetPrices("AAA", stale.AddDate(0, 0, -1), stale.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestCacheMaintenanceJob_EmptyCacheIsNoop(t *testing.T) {
	repo := newTestRepo(t)

	provider := &fakeProvider{}
	job := NewCacheMaintenanceJob(repo, provider, time.Hour, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, provider.tickers)
}
