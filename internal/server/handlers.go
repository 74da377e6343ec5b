package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-optimizer/internal/modules/allocation"
	"github.com/aristath/portfolio-optimizer/internal/modules/history"
	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
	"github.com/aristath/portfolio-optimizer/internal/modules/optimization"
	"github.com/aristath/portfolio-optimizer/internal/modules/simulation"
	"github.com/aristath/portfolio-optimizer/internal/modules/statistics"
	"github.com/aristath/portfolio-optimizer/pkg/formulas"
)

const (
	dateLayout = "2006-01-02"

	defaultLookbackYears    = 5
	defaultInvestmentAmount = 10000.0
	cvarConfidence          = 0.95

	// Expected-return estimators selectable per request
	ReturnsMethodMeanHistorical = "mean_historical"
	ReturnsMethodCAPM           = "capm"
)

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Tickers          []string            `json:"tickers"`
	StartDate        string              `json:"start_date,omitempty"`
	EndDate          string              `json:"end_date,omitempty"`
	Strategy         string              `json:"strategy,omitempty"`
	ReturnsMethod    string              `json:"returns_method,omitempty"`
	RiskFreeRate     float64             `json:"risk_free_rate,omitempty"`
	InvestmentAmount float64             `json:"investment_amount,omitempty"`
	Tau              float64             `json:"tau,omitempty"`
	Views            []optimization.View `json:"views,omitempty"`
	Constraints      map[string]float64  `json:"constraints,omitempty"`
}

// AnalyzeResponse is the body of a successful analysis
type AnalyzeResponse struct {
	RequestID      string                   `json:"request_id"`
	Strategy       string                   `json:"strategy"`
	ValidTickers   []string                 `json:"valid_tickers"`
	Weights        map[string]float64       `json:"weights"`
	Performance    optimization.Performance `json:"performance"`
	CVaR           float64                  `json:"cvar_95"`
	Allocation     *allocation.Result       `json:"allocation,omitempty"`
	DroppedTickers []string                 `json:"dropped_tickers,omitempty"`
}

// SimulateRequest is the body of POST /api/simulate
type SimulateRequest struct {
	Tickers        []string           `json:"tickers"`
	Weights        map[string]float64 `json:"weights"`
	StartDate      string             `json:"start_date,omitempty"`
	EndDate        string             `json:"end_date,omitempty"`
	InitialValue   float64            `json:"initial_portfolio_value,omitempty"`
	NumSimulations int                `json:"num_simulations,omitempty"`
	TimeHorizon    int                `json:"time_horizon,omitempty"`
}

// SimulateResponse wraps a Monte Carlo projection
type SimulateResponse struct {
	RequestID string             `json:"request_id"`
	Result    *simulation.Result `json:"result"`
}

// SymbolValidator checks which symbols Yahoo Finance recognizes
type SymbolValidator interface {
	ValidateSymbols(symbols []string) ([]string, error)
}

// Handlers serves the analysis and simulation endpoints
type Handlers struct {
	provider            marketdata.Provider
	optimizer           *optimization.Service
	allocator           *allocation.Allocator
	runs                *history.Repository
	validator           SymbolValidator
	defaultRiskFreeRate float64
	log                 zerolog.Logger
}

// NewHandlers creates the API handlers. The runs repository may be nil,
// in which case analyses are not persisted and the history endpoints
// report unavailable.
func NewHandlers(provider marketdata.Provider, optimizer *optimization.Service, runs *history.Repository, validator SymbolValidator, defaultRiskFreeRate float64, log zerolog.Logger) *Handlers {
	return &Handlers{
		provider:            provider,
		optimizer:           optimizer,
		allocator:           allocation.NewAllocator(log),
		runs:                runs,
		validator:           validator,
		defaultRiskFreeRate: defaultRiskFreeRate,
		log:                 log.With().Str("component", "handlers").Logger(),
	}
}

// HandleValidateSymbols reports which of the submitted symbols Yahoo
// Finance recognizes, so the UI can reject typos before a full
// analysis.
// POST /api/symbols/validate
func (h *Handlers) HandleValidateSymbols(w http.ResponseWriter, r *http.Request) {
	if h.validator == nil {
		writeError(w, http.StatusServiceUnavailable, "", "symbol validation is not available")
		return
	}

	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "", "symbols are required")
		return
	}

	valid, err := h.validator.ValidateSymbols(req.Symbols)
	if err != nil {
		writeError(w, http.StatusBadGateway, "", fmt.Sprintf("validation failed: %v", err))
		return
	}

	invalid := droppedTickers(req.Symbols, valid)
	if invalid == nil {
		invalid = []string{}
	}
	if valid == nil {
		valid = []string{}
	}

	writeJSON(w, http.StatusOK, map[string][]string{
		"valid":   valid,
		"invalid": invalid,
	})
}

// HandleAnalyze runs the full pipeline: fetch prices, estimate returns
// and covariance, allocate for the requested strategy, and convert the
// weights into whole-share positions.
// POST /api/analyze
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := h.log.With().Str("request_id", requestID).Logger()

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if len(req.Tickers) < 2 {
		writeError(w, http.StatusBadRequest, requestID, "at least 2 tickers are required")
		return
	}

	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, requestID, err.Error())
		return
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = optimization.StrategyMaxSharpe
	}
	if !validStrategy(strategy) {
		writeError(w, http.StatusBadRequest, requestID, fmt.Sprintf("unknown strategy: %s", strategy))
		return
	}

	riskFreeRate := req.RiskFreeRate
	if riskFreeRate == 0 {
		riskFreeRate = h.defaultRiskFreeRate
	}

	ctx := r.Context()

	frame, err := h.provider.FetchPrices(ctx, req.Tickers, start, end)
	if err != nil {
		log.Error().Err(err).Msg("Price fetch failed")
		writeError(w, http.StatusBadGateway, requestID, fmt.Sprintf("failed to fetch prices: %v", err))
		return
	}

	expectedReturns, err := h.expectedReturns(r, req.ReturnsMethod, frame, start, end)
	if err != nil {
		log.Error().Err(err).Msg("Expected return estimation failed")
		writeError(w, http.StatusBadGateway, requestID, fmt.Sprintf("failed to estimate returns: %v", err))
		return
	}

	covariance, err := statistics.SampleCovariance(frame)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, requestID, err.Error())
		return
	}

	dailyReturns := frame.DailyReturns()

	result, err := h.optimizer.Allocate(optimization.Request{
		Symbols:         frame.Tickers,
		ExpectedReturns: expectedReturns,
		Covariance:      covariance,
		DailyReturns:    dailyReturns,
		Strategy:        strategy,
		Views:           req.Views,
		Constraints:     req.Constraints,
		RiskFreeRate:    riskFreeRate,
		Tau:             req.Tau,
	})
	if err != nil {
		writeError(w, allocationErrorStatus(err), requestID, err.Error())
		return
	}

	resp := AnalyzeResponse{
		RequestID:      requestID,
		Strategy:       strategy,
		ValidTickers:   frame.Tickers,
		Weights:        result.Weights,
		Performance:    result.Performance,
		CVaR:           formulas.PortfolioCVaR(result.Weights, dailyReturns, cvarConfidence),
		DroppedTickers: droppedTickers(req.Tickers, frame.Tickers),
	}

	investment := req.InvestmentAmount
	if investment == 0 {
		investment = defaultInvestmentAmount
	}
	if investment > 0 {
		shares, err := h.allocator.Allocate(result.Weights, latestPrices(frame), investment)
		if err != nil {
			log.Warn().Err(err).Msg("Discrete allocation failed")
		} else {
			resp.Allocation = shares
		}
	}

	if h.runs != nil {
		_, err := h.runs.Save(history.Run{
			RequestID:      requestID,
			Strategy:       strategy,
			Tickers:        frame.Tickers,
			Weights:        result.Weights,
			ExpectedReturn: result.Performance.ExpectedReturn,
			Volatility:     result.Performance.Volatility,
			SharpeRatio:    result.Performance.SharpeRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to persist analysis run")
		}
	}

	log.Info().
		Str("strategy", strategy).
		Int("tickers", len(frame.Tickers)).
		Int("dropped", len(resp.DroppedTickers)).
		Msg("Analysis complete")

	writeJSON(w, http.StatusOK, resp)
}

// HandleListRuns returns recent analysis runs, newest first.
// GET /api/analyses
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "", "analysis history is not available")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "", fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	runs, err := h.runs.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// HandleGetRun returns one stored analysis run by ID.
// GET /api/analyses/{id}
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "", "analysis history is not available")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid run id")
		return
	}

	run, err := h.runs.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "", fmt.Sprintf("run %d not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// HandleSimulate projects portfolio value paths for a given weight
// vector over historical return and risk estimates.
// POST /api/simulate
func (h *Handlers) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := h.log.With().Str("request_id", requestID).Logger()

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if len(req.Tickers) == 0 {
		writeError(w, http.StatusBadRequest, requestID, "at least 1 ticker is required")
		return
	}
	if len(req.Weights) == 0 {
		writeError(w, http.StatusBadRequest, requestID, "weights are required")
		return
	}

	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, requestID, err.Error())
		return
	}

	frame, err := h.provider.FetchPrices(r.Context(), req.Tickers, start, end)
	if err != nil {
		log.Error().Err(err).Msg("Price fetch failed")
		writeError(w, http.StatusBadGateway, requestID, fmt.Sprintf("failed to fetch prices: %v", err))
		return
	}

	calc := statistics.NewMeanHistoricalCalculator(h.log)
	expectedReturns, err := calc.CalculateExpectedReturns(r.Context(), frame)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, requestID, err.Error())
		return
	}

	covariance, err := statistics.SampleCovariance(frame)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, requestID, err.Error())
		return
	}

	initial := req.InitialValue
	if initial == 0 {
		initial = defaultInvestmentAmount
	}

	sim := simulation.NewMonteCarloSimulator(time.Now().UnixNano(), h.log)
	result, err := sim.Simulate(simulation.Request{
		Symbols:         frame.Tickers,
		ExpectedReturns: expectedReturns,
		Covariance:      covariance,
		Weights:         req.Weights,
		InitialValue:    initial,
		NumSimulations:  req.NumSimulations,
		TimeHorizon:     req.TimeHorizon,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, requestID, err.Error())
		return
	}

	log.Info().
		Int("tickers", len(frame.Tickers)).
		Float64("final_mean", result.FinalMean).
		Msg("Simulation complete")

	writeJSON(w, http.StatusOK, SimulateResponse{RequestID: requestID, Result: result})
}

// expectedReturns picks the estimator for the request. CAPM needs its
// own benchmark fetches, so it gets the provider and window.
func (h *Handlers) expectedReturns(r *http.Request, method string, frame *marketdata.PriceFrame, start, end time.Time) (map[string]float64, error) {
	switch method {
	case "", ReturnsMethodMeanHistorical:
		calc := statistics.NewMeanHistoricalCalculator(h.log)
		return calc.CalculateExpectedReturns(r.Context(), frame)
	case ReturnsMethodCAPM:
		calc := statistics.NewCapmCalculator(h.provider, start, end, h.log)
		return calc.CalculateExpectedReturns(r.Context(), frame)
	default:
		return nil, fmt.Errorf("unknown returns method: %s", method)
	}
}

// parseWindow resolves the analysis window, defaulting to the last
// five years ending today.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endStr != "" {
		parsed, err := time.Parse(dateLayout, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: expected YYYY-MM-DD", endStr)
		}
		end = parsed
	}

	start := end.AddDate(-defaultLookbackYears, 0, 0)
	if startStr != "" {
		parsed, err := time.Parse(dateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", startStr)
		}
		start = parsed
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return start, end, nil
}

// allocationErrorStatus maps optimizer failures to HTTP statuses:
// caller mistakes are 400s, numerical failures are 422s.
func allocationErrorStatus(err error) int {
	var unknownAsset *optimization.UnknownAssetError
	var badCap *optimization.ConstraintRangeError
	var singular *optimization.SingularCovarianceError

	switch {
	case errors.Is(err, optimization.ErrViewsNotSet),
		errors.As(err, &unknownAsset),
		errors.As(err, &badCap):
		return http.StatusBadRequest
	case errors.As(err, &singular):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func validStrategy(strategy string) bool {
	switch strategy {
	case optimization.StrategyMaxSharpe,
		optimization.StrategyMinVolatility,
		optimization.StrategyHRP,
		optimization.StrategyBlackLitterman:
		return true
	}
	return false
}

// latestPrices extracts the last close per ticker for discrete allocation
func latestPrices(frame *marketdata.PriceFrame) map[string]float64 {
	prices := make(map[string]float64, len(frame.Tickers))
	for _, ticker := range frame.Tickers {
		series, ok := frame.Series(ticker)
		if !ok || len(series) == 0 {
			continue
		}
		prices[ticker] = series[len(series)-1]
	}
	return prices
}

// droppedTickers lists requested tickers missing from the final frame
func droppedTickers(requested, kept []string) []string {
	keptSet := make(map[string]struct{}, len(kept))
	for _, t := range kept {
		keptSet[t] = struct{}{}
	}

	var dropped []string
	for _, t := range requested {
		if _, ok := keptSet[t]; !ok {
			dropped = append(dropped, t)
		}
	}
	return dropped
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, requestID, message string) {
	writeJSON(w, status, map[string]string{
		"request_id": requestID,
		"error":      message,
	})
}
