package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-core/internal/engine"
	"options-core/internal/events"
	"options-core/internal/ledger"
	"options-core/internal/market"
	"options-core/internal/monitor"
	"options-core/internal/notify"
	"options-core/internal/signal"
	"options-core/internal/trade"
	"options-core/pkg/db"
)

const testSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	db     *db.Database
	bus    *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(database))

	catalog := market.NewCatalog(market.DefaultInstruments())
	prices := market.NewStore(market.DefaultCapacity)
	sim := market.NewSimulator(catalog, prices, market.NewRandomWalk(11), time.Second)
	require.NoError(t, sim.SeedHistory("EURUSD", 60))

	bus := events.NewBus()
	sink := notify.NewBusSink(bus)
	metrics := monitor.NewSystemMetrics()

	l := ledger.New(ledger.Config{
		Store:              database,
		Catalog:            catalog,
		Prices:             prices,
		Sink:               sink,
		Metrics:            metrics,
		DemoInitialBalance: decimal.NewFromInt(10000),
	})
	gen := signal.NewGenerator(signal.Config{Catalog: catalog, Store: prices, Sink: sink})
	require.NoError(t, gen.Cycle(context.Background()))

	svc := engine.NewImpl(engine.Config{
		Ledger:  l,
		Catalog: catalog,
		Prices:  prices,
		Signals: gen,
		DB:      database,
		Meta:    engine.SystemStatus{Version: "test"},
	})

	server := NewServer(ServerConfig{
		Engine:    svc,
		Bus:       bus,
		Metrics:   metrics,
		JWTSecret: testSecret,
		RateLimit: 1000,
		RateBurst: 1000,
	})

	ts := httptest.NewServer(server.Router)
	t.Cleanup(func() {
		ts.Close()
		_ = database.Close()
	})
	return &testEnv{server: ts, db: database, bus: bus}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := GenerateToken(userID, testSecret, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return tok
}

func doJSONRequest(t *testing.T, client *http.Client, method, url, token string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type placeResp struct {
	Success bool   `json:"success"`
	TradeID string `json:"trade_id"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Trade   struct {
		AssetSymbol string `json:"asset_symbol"`
		Direction   string `json:"direction"`
		Result      string `json:"result"`
		Stake       string `json:"stake"`
	} `json:"trade"`
}

func TestPlaceTradeRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	var resp struct {
		Code string `json:"code"`
	}
	status := doJSONRequest(t, env.server.Client(), http.MethodPost, env.server.URL+"/api/trades", "", map[string]any{}, &resp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_TOKEN", resp.Code)

	status = doJSONRequest(t, env.server.Client(), http.MethodGet, env.server.URL+"/api/trades/active", "not-a-jwt", nil, &resp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", resp.Code)
}

func TestPlaceTradeAndQuery(t *testing.T) {
	env := newTestEnv(t)
	client := env.server.Client()
	require.NoError(t, env.db.Deposit(context.Background(), "alice", trade.ModeReal, decimal.NewFromInt(500)))
	token := tokenFor(t, "alice")

	var placed placeResp
	status := doJSONRequest(t, client, http.MethodPost, env.server.URL+"/api/trades", token, map[string]any{
		"asset_id":  "EURUSD",
		"direction": "up",
		"stake":     "50",
		"duration":  5,
	}, &placed)
	require.Equal(t, http.StatusCreated, status, placed.Error)
	assert.True(t, placed.Success)
	assert.NotEmpty(t, placed.TradeID)
	assert.Equal(t, "EURUSD", placed.Trade.AssetSymbol)
	assert.Equal(t, "UP", placed.Trade.Direction)
	assert.Equal(t, "PENDING", placed.Trade.Result)
	assert.Equal(t, "50", placed.Trade.Stake)

	var active []map[string]any
	status = doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/trades/active", token, nil, &active)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, active, 1)
	assert.Equal(t, placed.TradeID, active[0]["id"])

	var history []map[string]any
	status = doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/trades/history?limit=10", token, nil, &history)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, history, 1)

	var wallets []struct {
		Mode    string `json:"mode"`
		Balance string `json:"balance"`
	}
	status = doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/wallets", token, nil, &wallets)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, wallets, 1)
	assert.Equal(t, "450", wallets[0].Balance)

	var stats struct {
		TotalTrades  int64 `json:"total_trades"`
		ActiveTrades int   `json:"active_trades"`
	}
	status = doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/stats", token, nil, &stats)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, stats.TotalTrades)
	assert.Equal(t, 1, stats.ActiveTrades)

	var txs []map[string]any
	status = doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/transactions", token, nil, &txs)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, txs, 2)

	var other []map[string]any
	status = doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/trades/active", tokenFor(t, "bob"), nil, &other)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, other)
}

func TestPlaceTradeErrors(t *testing.T) {
	env := newTestEnv(t)
	client := env.server.Client()
	require.NoError(t, env.db.Deposit(context.Background(), "alice", trade.ModeReal, decimal.NewFromInt(10)))
	token := tokenFor(t, "alice")
	url := env.server.URL + "/api/trades"

	cases := []struct {
		name    string
		payload map[string]any
		status  int
		code    string
		message string
	}{
		{"malformed", map[string]any{"asset_id": "eurusd"}, http.StatusBadRequest, "INVALID_REQUEST", ""},
		{"zero duration", map[string]any{"asset_id": "eurusd", "direction": "UP", "stake": 5, "duration": 0}, http.StatusBadRequest, "VALIDATION_ERROR", "invalid trade: duration must be between 1 and 1440 minutes"},
		{"missing duration", map[string]any{"asset_id": "eurusd", "direction": "UP", "stake": 5}, http.StatusBadRequest, "VALIDATION_ERROR", "invalid trade: duration must be between 1 and 1440 minutes"},
		{"duration over a day", map[string]any{"asset_id": "eurusd", "direction": "UP", "stake": 5, "duration": 1441}, http.StatusBadRequest, "VALIDATION_ERROR", "invalid trade: duration must be between 1 and 1440 minutes"},
		{"stake below unit", map[string]any{"asset_id": "eurusd", "direction": "UP", "stake": "0.000000001", "duration": 1}, http.StatusBadRequest, "VALIDATION_ERROR", "invalid trade: stake must have at most 8 decimal places"},
		{"zero stake", map[string]any{"asset_id": "eurusd", "direction": "UP", "stake": 0, "duration": 1}, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"bad direction", map[string]any{"asset_id": "eurusd", "direction": "LEFT", "stake": 5, "duration": 1}, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"unknown asset", map[string]any{"asset_id": "doge", "direction": "UP", "stake": 5, "duration": 1}, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"insufficient balance", map[string]any{"asset_id": "eurusd", "direction": "UP", "stake": 50, "duration": 1}, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"no price yet", map[string]any{"asset_id": "btcusd", "direction": "UP", "stake": 5, "duration": 1}, http.StatusServiceUnavailable, "PRICE_UNAVAILABLE", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp placeResp
			status := doJSONRequest(t, client, http.MethodPost, url, token, tc.payload, &resp)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, resp.Code)
			assert.False(t, resp.Success)
			if tc.message != "" {
				assert.Equal(t, tc.message, resp.Error)
			}
		})
	}

	pending, err := env.db.ListPendingTrades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDemoTradeOpensWallet(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "carol")

	var placed placeResp
	status := doJSONRequest(t, env.server.Client(), http.MethodPost, env.server.URL+"/api/trades", token, map[string]any{
		"asset_id":  "eurusd",
		"direction": "DOWN",
		"stake":     100,
		"duration":  1,
		"mode":      "demo",
	}, &placed)
	require.Equal(t, http.StatusCreated, status, placed.Error)

	w, err := env.db.GetWallet(context.Background(), "carol", trade.ModeDemo)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(9900)))
}

func TestMarketRoutes(t *testing.T) {
	env := newTestEnv(t)
	client := env.server.Client()
	base := env.server.URL + "/api"

	var instruments []map[string]any
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, base+"/instruments", "", nil, &instruments))
	assert.Len(t, instruments, 6)

	var tick struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, base+"/prices/eurusd", "", nil, &tick))
	assert.Equal(t, "EURUSD", tick.Symbol)
	assert.Greater(t, tick.Price, 0.0)

	var hist []map[string]any
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, base+"/prices/EURUSD/history?limit=5", "", nil, &hist))
	assert.Len(t, hist, 5)

	var errResp struct {
		Code string `json:"code"`
	}
	assert.Equal(t, http.StatusNotFound, doJSONRequest(t, client, http.MethodGet, base+"/prices/NOPE", "", nil, &errResp))
	assert.Equal(t, "UNKNOWN_SYMBOL", errResp.Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSONRequest(t, client, http.MethodGet, base+"/prices/BTCUSD", "", nil, &errResp))
	assert.Equal(t, "PRICE_UNAVAILABLE", errResp.Code)

	var signals []map[string]any
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, base+"/signals", "", nil, &signals))
	require.Len(t, signals, 1)
	assert.Equal(t, "EURUSD", signals[0]["symbol"])

	var sig struct {
		Signal         string `json:"signal"`
		Recommendation string `json:"recommendation"`
	}
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, base+"/signals/eurusd", "", nil, &sig))
	assert.Contains(t, []string{"BUY", "SELL", "NEUTRAL"}, sig.Signal)
	assert.NotEmpty(t, sig.Recommendation)
	assert.Equal(t, http.StatusNotFound, doJSONRequest(t, client, http.MethodGet, base+"/signals/btcusd", "", nil, nil))
}

func TestSystemRoutes(t *testing.T) {
	env := newTestEnv(t)
	client := env.server.Client()

	var health map[string]string
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, env.server.URL+"/health", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	var status engine.SystemStatus
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/system/status", "", nil, &status))
	assert.Equal(t, "test", status.Version)

	var snap monitor.MetricsSnapshot
	require.Equal(t, http.StatusOK, doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/metrics", "", nil, &snap))
	assert.GreaterOrEqual(t, snap.APIRequests, uint64(2))

	resp, err := client.Get(env.server.URL + "/api/metrics/prom")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "options_api_requests_total")
}

func TestWebsocketStreamsUserEvents(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Deposit(context.Background(), "dave", trade.ModeReal, decimal.NewFromInt(100)))
	token := tokenFor(t, "dave")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return env.bus.Subscribers(events.UserChannel("dave")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var placed placeResp
	status := doJSONRequest(t, env.server.Client(), http.MethodPost, env.server.URL+"/api/trades", token, map[string]any{
		"asset_id": "eurusd", "direction": "UP", "stake": 10, "duration": 1,
	}, &placed)
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, notify.TypeTradeUpdate, msg.Type)
	assert.Equal(t, placed.TradeID, msg.Payload["id"])
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
