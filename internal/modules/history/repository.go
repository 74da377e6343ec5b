// Package history persists analysis runs so past allocations can be
// reviewed and compared.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Run is one stored analysis result
type Run struct {
	ID             int64              `json:"id"`
	RequestID      string             `json:"request_id"`
	CreatedAt      time.Time          `json:"created_at"`
	Strategy       string             `json:"strategy"`
	Tickers        []string           `json:"tickers"`
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
}

// Repository stores analysis runs in SQLite
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates the repository and its schema
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id      TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			strategy        TEXT NOT NULL,
			tickers         TEXT NOT NULL,
			weights         TEXT NOT NULL,
			expected_return REAL NOT NULL,
			volatility      REAL NOT NULL,
			sharpe_ratio    REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_analysis_runs_created
			ON analysis_runs(created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Repository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}, nil
}

// Save stores one analysis run and returns its ID
func (r *Repository) Save(run Run) (int64, error) {
	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal weights: %w", err)
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO analysis_runs
		(request_id, created_at, strategy, tickers, weights, expected_return, volatility, sharpe_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RequestID,
		createdAt.Format(time.RFC3339),
		run.Strategy,
		strings.Join(run.Tickers, ","),
		string(weights),
		run.ExpectedReturn,
		run.Volatility,
		run.SharpeRatio,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	r.log.Debug().Int64("id", id).Str("strategy", run.Strategy).Msg("Saved analysis run")
	return id, nil
}

// Recent returns the newest runs, most recent first
func (r *Repository) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, request_id, created_at, strategy, tickers, weights,
		       expected_return, volatility, sharpe_ratio
		FROM analysis_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}

	return runs, nil
}

// Get fetches one run by ID. Returns sql.ErrNoRows when missing.
func (r *Repository) Get(id int64) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, request_id, created_at, strategy, tickers, weights,
		       expected_return, volatility, sharpe_ratio
		FROM analysis_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var createdAt, tickers, weights string

	err := row.Scan(
		&run.ID,
		&run.RequestID,
		&createdAt,
		&run.Strategy,
		&tickers,
		&weights,
		&run.ExpectedReturn,
		&run.Volatility,
		&run.SharpeRatio,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan analysis run: %w", err)
	}

	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse run timestamp %s: %w", createdAt, err)
	}
	if tickers != "" {
		run.Tickers = strings.Split(tickers, ",")
	}
	if err := json.Unmarshal([]byte(weights), &run.Weights); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal weights: %w", err)
	}

	return run, nil
}
