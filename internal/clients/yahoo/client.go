package yahoo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Client is a Yahoo Finance chart API client
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://query1.finance.yahoo.com",
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint.
// Used by tests to target an httptest server.
func NewClientWithBaseURL(log zerolog.Logger, baseURL string) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

// chartResponse mirrors the Yahoo Finance v8 chart API JSON
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// GetHistoricalPrices fetches daily OHLCV data for a symbol between start
// and end. The end date is exclusive, matching the chart API's period2
// semantics.
func (c *Client) GetHistoricalPrices(symbol string, start, end time.Time) ([]HistoricalPrice, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("period1", strconv.FormatInt(start.Unix(), 10))
	params.Add("period2", strconv.FormatInt(end.Unix(), 10))
	params.Add("events", "div,splits")

	result, err := c.fetchChart(symbol, params)
	if err != nil {
		return nil, err
	}

	if len(result.Chart.Result) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return []HistoricalPrice{}, nil
	}

	chartData := result.Chart.Result[0]
	timestamps := chartData.Timestamp
	if len(chartData.Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No quote data in response")
		return []HistoricalPrice{}, nil
	}

	quote := chartData.Indicators.Quote[0]

	var adjCloseData []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloseData = chartData.Indicators.AdjClose[0].AdjClose
	}

	var prices []HistoricalPrice
	for i := range timestamps {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}

		// Yahoo sometimes returns null rows
		if quote.Open[i] == 0 && quote.High[i] == 0 && quote.Low[i] == 0 && quote.Close[i] == 0 {
			continue
		}

		adjClose := quote.Close[i]
		if i < len(adjCloseData) && adjCloseData[i] != 0 {
			adjClose = adjCloseData[i]
		}

		volume := int64(0)
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}

		prices = append(prices, HistoricalPrice{
			Date:     time.Unix(timestamps[i], 0).UTC(),
			Open:     quote.Open[i],
			High:     quote.High[i],
			Low:      quote.Low[i],
			Close:    quote.Close[i],
			Volume:   volume,
			AdjClose: adjClose,
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Time("start", start).
		Time("end", end).
		Int("count", len(prices)).
		Msg("Fetched historical prices")

	return prices, nil
}

// GetHistoricalPricesByRange fetches daily OHLCV data using a named range
// such as 1mo, 6mo, 1y, 5y, max.
func (c *Client) GetHistoricalPricesByRange(symbol string, period string) ([]HistoricalPrice, error) {
	end := time.Now()
	start, err := rangeToStart(end, period)
	if err != nil {
		return nil, err
	}
	return c.GetHistoricalPrices(symbol, start, end)
}

// GetQuote fetches the current market snapshot for a symbol using the
// chart API's meta block, which is available without authentication.
func (c *Client) GetQuote(symbol string) (*Quote, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", "1d")

	result, err := c.fetchChart(symbol, params)
	if err != nil {
		return nil, err
	}

	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no quote data for symbol %s", symbol)
	}

	meta := result.Chart.Result[0].Meta
	return &Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		PreviousClose: meta.PreviousClose,
	}, nil
}

func (c *Client) fetchChart(symbol string, params url.Values) (*chartResponse, error) {
	reqURL := c.baseURL + "/v8/finance/chart/" + url.QueryEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.Chart.Error)
	}

	return &result, nil
}

func rangeToStart(end time.Time, period string) (time.Time, error) {
	switch period {
	case "1d":
		return end.AddDate(0, 0, -1), nil
	case "5d":
		return end.AddDate(0, 0, -5), nil
	case "1mo":
		return end.AddDate(0, -1, 0), nil
	case "3mo":
		return end.AddDate(0, -3, 0), nil
	case "6mo":
		return end.AddDate(0, -6, 0), nil
	case "1y":
		return end.AddDate(-1, 0, 0), nil
	case "2y":
		return end.AddDate(-2, 0, 0), nil
	case "5y":
		return end.AddDate(-5, 0, 0), nil
	case "10y":
		return end.AddDate(-10, 0, 0), nil
	case "max":
		return time.Unix(0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported period: %s", period)
	}
}
