package marketdata

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-optimizer/internal/clients/yahoo"
)

func newTestRepository(t *testing.T) *PriceRepository {
	t.Helper()
	db, err := OpenPriceDB(filepath.Join(t.TempDir(), "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPriceRepository(db, zerolog.Nop())
}

func TestUpsertAndGetPrices(t *testing.T) {
	repo := newTestRepository(t)

	prices := []yahoo.HistoricalPrice{
		{Date: day(2024, 1, 2), Open: 184.0, High: 186.0, Low: 183.0, Close: 185.0, AdjClose: 184.5, Volume: 1000},
		{Date: day(2024, 1, 3), Open: 185.0, High: 187.0, Low: 184.0, Close: 186.0, AdjClose: 185.5, Volume: 1100},
	}
	require.NoError(t, repo.UpsertPrices("AAPL", prices))

	got, err := repo.GetPrices("AAPL", day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2024, 1, 2), got[0].Date)
	assert.Equal(t, 184.5, got[0].AdjClose)
	assert.Equal(t, int64(1000), got[0].Volume)

	// Range excludes the second row
	got, err = repo.GetPrices("AAPL", day(2024, 1, 1), day(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestUpsertPrices_ReplacesDuplicates(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.UpsertPrices("AAPL", []yahoo.HistoricalPrice{
		{Date: day(2024, 1, 2), Close: 185.0, AdjClose: 185.0},
	}))
	require.NoError(t, repo.UpsertPrices("AAPL", []yahoo.HistoricalPrice{
		{Date: day(2024, 1, 2), Close: 186.0, AdjClose: 186.0},
	}))

	got, err := repo.GetPrices("AAPL", day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 186.0, got[0].AdjClose)
}

func TestLatestDate(t *testing.T) {
	repo := newTestRepository(t)

	latest, err := repo.LatestDate("AAPL")
	require.NoError(t, err)
	assert.True(t, latest.IsZero())

	require.NoError(t, repo.UpsertPrices("AAPL", []yahoo.HistoricalPrice{
		{Date: day(2024, 1, 2), Close: 185.0, AdjClose: 185.0},
		{Date: day(2024, 1, 5), Close: 187.0, AdjClose: 187.0},
	}))

	latest, err = repo.LatestDate("AAPL")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 5), latest)
}

func TestPurgeOlderThan(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.UpsertPrices("AAPL", []yahoo.HistoricalPrice{
		{Date: day(2014, 1, 2), Close: 80.0, AdjClose: 80.0},
		{Date: day(2024, 1, 2), Close: 185.0, AdjClose: 185.0},
	}))

	deleted, err := repo.PurgeOlderThan(day(2020, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := repo.GetPrices("AAPL", day(2000, 1, 1), day(2030, 1, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, day(2024, 1, 2), got[0].Date)
}
