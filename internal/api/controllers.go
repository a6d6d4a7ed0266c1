package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"options-core/internal/ledger"
	"options-core/internal/monitor"
	"options-core/internal/trade"
)

type placeTradeRequest struct {
	AssetID   string          `json:"asset_id" binding:"required"`
	Direction string          `json:"direction" binding:"required"`
	Stake     decimal.Decimal `json:"stake"`
	Duration  int             `json:"duration"`
	Mode      string          `json:"mode"`
}

type placeTradeResponse struct {
	Success bool         `json:"success"`
	TradeID string       `json:"trade_id,omitempty"`
	Trade   *trade.Trade `json:"trade,omitempty"`
	Code    string       `json:"code,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type listQuery struct {
	Limit int `form:"limit"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// classify maps the core's error taxonomy onto HTTP.
func classify(err error) (int, string) {
	var (
		verr *trade.ValidationError
		perr *trade.PriceUnavailableError
		serr *trade.PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.As(err, &perr):
		return http.StatusServiceUnavailable, "PRICE_UNAVAILABLE"
	case errors.As(err, &serr):
		return http.StatusInternalServerError, "PERSISTENCE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondServiceError(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	respondError(c, status, code, msg)
}

// placeTrade opens a new binary-options trade for the authenticated user.
func (s *Server) placeTrade(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "user not authenticated")
		return
	}

	var req placeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, placeTradeResponse{Code: "INVALID_REQUEST", Error: "invalid request payload"})
		return
	}
	mode := trade.Mode(strings.ToUpper(req.Mode))
	if mode == "" {
		mode = trade.ModeReal
	}

	t, err := s.Engine.PlaceTrade(c.Request.Context(), ledger.PlaceRequest{
		UserID:          userID,
		AssetID:         strings.ToLower(req.AssetID),
		Direction:       trade.Direction(strings.ToUpper(req.Direction)),
		Stake:           req.Stake,
		DurationMinutes: req.Duration,
		Mode:            mode,
	})
	if err != nil {
		status, code := classify(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("trade placement failed")
			msg = "trade could not be recorded"
		}
		c.JSON(status, placeTradeResponse{Code: code, Error: msg})
		return
	}

	c.JSON(http.StatusCreated, placeTradeResponse{Success: true, TradeID: t.ID, Trade: &t})
}

func (s *Server) getActiveTrades(c *gin.Context) {
	trades, err := s.Engine.ActiveTrades(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) getTradeHistory(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "limit must be an integer")
		return
	}
	trades, err := s.Engine.TradeHistory(c.Request.Context(), CurrentUserID(c), q.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.Engine.UserStats(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getWallets(c *gin.Context) {
	wallets, err := s.Engine.Wallets(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallets)
}

func (s *Server) getTransactions(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "limit must be an integer")
		return
	}
	txs, err := s.Engine.Transactions(c.Request.Context(), CurrentUserID(c), q.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// --- market data ---

func (s *Server) getInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Instruments(c.Request.Context()))
}

func (s *Server) getPrice(c *gin.Context) {
	tick, err := s.Engine.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		if trade.IsValidation(err) {
			respondError(c, http.StatusNotFound, "UNKNOWN_SYMBOL", err.Error())
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tick)
}

func (s *Server) getPriceHistory(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "limit must be an integer")
		return
	}
	hist, err := s.Engine.PriceHistory(c.Request.Context(), c.Param("symbol"), q.Limit)
	if err != nil {
		if trade.IsValidation(err) {
			respondError(c, http.StatusNotFound, "UNKNOWN_SYMBOL", err.Error())
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

func (s *Server) getSignals(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Signals(c.Request.Context()))
}

func (s *Server) getSignal(c *gin.Context) {
	sig, ok := s.Engine.Signal(c.Request.Context(), c.Param("symbol"))
	if !ok {
		respondError(c, http.StatusNotFound, "NO_SIGNAL", "no signal for "+c.Param("symbol"))
		return
	}
	c.JSON(http.StatusOK, sig)
}

// --- system ---

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.GetSystemStatus(c.Request.Context()))
}

// getMetrics returns system performance metrics.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// getPromMetrics returns a minimal Prometheus text exposition of key metrics.
func (s *Server) getPromMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.String(http.StatusServiceUnavailable, "# metrics not available\n")
		return
	}
	snapshot := s.Metrics.GetSnapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "options_api_requests_total %d\n", snapshot.APIRequests)
	fmt.Fprintf(&b, "options_api_errors_total %d\n", snapshot.APIErrors)
	fmt.Fprintf(&b, "options_ticks_processed_total %d\n", snapshot.TicksProcessed)
	fmt.Fprintf(&b, "options_signals_generated_total %d\n", snapshot.SignalsGenerated)
	fmt.Fprintf(&b, "options_trades_placed_total %d\n", snapshot.TradesPlaced)
	fmt.Fprintf(&b, "options_trades_settled_total %d\n", snapshot.TradesSettled)
	fmt.Fprintf(&b, "options_trades_won_total %d\n", snapshot.Wins)
	fmt.Fprintf(&b, "options_trades_lost_total %d\n", snapshot.Losses)
	fmt.Fprintf(&b, "options_settlement_skipped_total %d\n", snapshot.SettlementSkipped)
	fmt.Fprintf(&b, "options_errors_total %d\n", snapshot.ErrorsCount)

	writeLatency := func(prefix string, ls monitor.LatencyStats) {
		if ls.Count == 0 {
			return
		}
		fmt.Fprintf(&b, "options_%s_latency_ms_avg %f\n", prefix, ls.Avg)
		fmt.Fprintf(&b, "options_%s_latency_ms_p50 %f\n", prefix, ls.P50)
		fmt.Fprintf(&b, "options_%s_latency_ms_p95 %f\n", prefix, ls.P95)
		fmt.Fprintf(&b, "options_%s_latency_ms_p99 %f\n", prefix, ls.P99)
	}
	writeLatency("api", snapshot.APILatency)
	writeLatency("sweep", snapshot.SweepLatency)
	writeLatency("signal", snapshot.SignalLatency)
	writeLatency("store", snapshot.StoreLatency)

	fmt.Fprintf(&b, "options_active_trades %d\n", snapshot.ActiveTrades)
	fmt.Fprintf(&b, "options_goroutines %d\n", snapshot.GoroutineCount)
	fmt.Fprintf(&b, "options_heap_alloc_bytes %d\n", snapshot.HeapAlloc)
	fmt.Fprintf(&b, "options_heap_sys_bytes %d\n", snapshot.HeapSys)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, b.String())
}
