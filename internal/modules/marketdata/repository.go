package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-optimizer/internal/clients/yahoo"
)

// PriceRepository caches daily price data in SQLite so repeated
// analyses over the same window do not refetch from Yahoo Finance.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenPriceDB opens the price cache database with WAL enabled and
// creates the schema if missing.
func OpenPriceDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open price database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol     TEXT NOT NULL,
			date       TEXT NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL NOT NULL,
			adj_close  REAL NOT NULL,
			volume     INTEGER,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol_date
			ON daily_prices(symbol, date);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create price schema: %w", err)
	}

	return db, nil
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("component", "price_repository").Logger(),
	}
}

// GetPrices fetches cached daily prices for a symbol within [start, end)
func (r *PriceRepository) GetPrices(symbol string, start, end time.Time) ([]yahoo.HistoricalPrice, error) {
	query := `
		SELECT date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date < ?
		ORDER BY date ASC
	`

	rows, err := r.db.Query(query, symbol, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []yahoo.HistoricalPrice
	for rows.Next() {
		var p yahoo.HistoricalPrice
		var date string
		var volume sql.NullInt64

		if err := rows.Scan(&date, &p.Open, &p.High, &p.Low, &p.Close, &p.AdjClose, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		p.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price date %s: %w", date, err)
		}
		if volume.Valid {
			p.Volume = volume.Int64
		}

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// LatestDate returns the most recent cached date for a symbol, or the
// zero time when nothing is cached.
func (r *PriceRepository) LatestDate(symbol string) (time.Time, error) {
	var date sql.NullString
	err := r.db.QueryRow(
		"SELECT MAX(date) FROM daily_prices WHERE symbol = ?", symbol,
	).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest date: %w", err)
	}

	if !date.Valid || date.String == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(dateLayout, date.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse latest date %s: %w", date.String, err)
	}
	return parsed, nil
}

// UpsertPrices writes daily prices for a symbol in a single transaction
func (r *PriceRepository) UpsertPrices(symbol string, prices []yahoo.HistoricalPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
		(symbol, date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		volume := sql.NullInt64{Int64: p.Volume, Valid: p.Volume > 0}

		_, err = stmt.Exec(
			symbol,
			p.Date.Format(dateLayout),
			p.Open,
			p.High,
			p.Low,
			p.Close,
			p.AdjClose,
			volume,
		)
		if err != nil {
			return fmt.Errorf("failed to insert daily price for %s: %w", p.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debug().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Cached daily prices")

	return nil
}

// CachedSymbols lists every symbol with at least one cached row
func (r *PriceRepository) CachedSymbols() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query cached symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// PurgeOlderThan deletes cached rows older than the cutoff date.
// Called by the scheduled cache maintenance job.
func (r *PriceRepository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(
		"DELETE FROM daily_prices WHERE date < ?", cutoff.Format(dateLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old prices: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}

	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Purged stale price rows")
	}

	return deleted, nil
}
