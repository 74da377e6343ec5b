package yahoo

import "time"

// HistoricalPrice represents a single day's OHLCV data
type HistoricalPrice struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	AdjClose float64   `json:"adj_close"`
}

// Quote holds the current market snapshot for a symbol
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
}

// HistoryClient fetches historical OHLCV data for a symbol.
// Implemented by both the raw chart-API client and the native client.
type HistoryClient interface {
	GetHistoricalPrices(symbol string, start, end time.Time) ([]HistoricalPrice, error)
}
