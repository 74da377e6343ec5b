package history

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-optimizer/internal/database"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
		Name: "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func sampleRun(requestID string) Run {
	return Run{
		RequestID:      requestID,
		Strategy:       "max_sharpe",
		Tickers:        []string{"AAA", "BBB"},
		Weights:        map[string]float64{"AAA": 0.6, "BBB": 0.4},
		ExpectedReturn: 0.08,
		Volatility:     0.15,
		SharpeRatio:    0.4,
	}
}

func TestRepository_SaveAndGet(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.Save(sampleRun("req-1"))
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	run, err := repo.Get(id)
	require.NoError(t, err)

	assert.Equal(t, "req-1", run.RequestID)
	assert.Equal(t, "max_sharpe", run.Strategy)
	assert.Equal(t, []string{"AAA", "BBB"}, run.Tickers)
	assert.InDelta(t, 0.6, run.Weights["AAA"], 1e-9)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRepository_RecentOrdering(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun("req")
		run.RequestID = string(rune('a' + i))
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := repo.Save(run)
		require.NoError(t, err)
	}

	runs, err := repo.Recent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "c", runs[0].RequestID)
	assert.Equal(t, "b", runs[1].RequestID)
}

func TestRepository_RecentEmpty(t *testing.T) {
	repo := newTestRepo(t)

	runs, err := repo.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
