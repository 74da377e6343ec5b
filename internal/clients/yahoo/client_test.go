package yahoo

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "AAPL", "regularMarketPrice": 190.5, "previousClose": 189.0},
			"timestamp": [1704067200, 1704153600, 1704240000],
			"indicators": {
				"quote": [{
					"open": [185.0, 186.5, 0],
					"high": [187.0, 188.0, 0],
					"low": [184.0, 185.5, 0],
					"close": [186.0, 187.5, 0],
					"volume": [1000000, 1100000, 0]
				}],
				"adjclose": [{"adjclose": [185.5, 187.0, 0]}]
			}
		}],
		"error": null
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithBaseURL(zerolog.Nop(), srv.URL), srv
}

func TestGetHistoricalPrices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/AAPL")
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		assert.NotEmpty(t, r.URL.Query().Get("period2"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartFixture))
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	prices, err := client.GetHistoricalPrices("AAPL", start, end)
	require.NoError(t, err)

	// Third row is all zeros and must be dropped
	require.Len(t, prices, 2)
	assert.Equal(t, 186.0, prices[0].Close)
	assert.Equal(t, 185.5, prices[0].AdjClose)
	assert.Equal(t, int64(1000000), prices[0].Volume)
	assert.True(t, prices[0].Date.Before(prices[1].Date))
}

func TestGetHistoricalPrices_EmptyResult(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": null}}`))
	})

	prices, err := client.GetHistoricalPrices("UNKNOWN", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestGetHistoricalPrices_APIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`))
	})

	_, err := client.GetHistoricalPrices("BADTICKER", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Yahoo Finance API error")
}

func TestGetHistoricalPrices_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetHistoricalPrices("AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestGetQuote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartFixture))
	})

	quote, err := client.GetQuote("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 190.5, quote.Price)
	assert.Equal(t, 189.0, quote.PreviousClose)
}

func TestRangeToStart(t *testing.T) {
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		period string
		want   time.Time
	}{
		{"1mo", time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		{"1y", time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"5y", time.Date(2019, 6, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := rangeToStart(end, tt.period)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := rangeToStart(end, "7w")
	assert.Error(t, err)
}
