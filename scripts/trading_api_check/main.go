package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"options-core/internal/api"
	"options-core/internal/logger"
	"options-core/pkg/config"
)

// trading_api_check exercises a running options-core over HTTP.
//
// Usage:
//
//	go run ./scripts/trading_api_check
//
// Environment (JWT_SECRET must match the server):
//
//	CHECK_BASE_URL     (default "http://localhost:8080")
//	CHECK_USER_ID      (default "api-check")
//	CHECK_ASSET_ID     (default "btcusd")
//	CHECK_PLACE_TRADE  (default "false") places a 1-minute DEMO trade when "true"

func main() {
	logger.Setup("info", "console")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	base := getenv("CHECK_BASE_URL", "http://localhost:8080")
	userID := getenv("CHECK_USER_ID", "api-check")
	assetID := getenv("CHECK_ASSET_ID", "btcusd")
	place := getenv("CHECK_PLACE_TRADE", "false") == "true"

	token, err := api.GenerateToken(userID, cfg.JWTSecret, time.Now().Add(10*time.Minute))
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	c := &checker{base: base, token: token, http: &http.Client{Timeout: 10 * time.Second}}

	log.Info().Str("base", base).Str("user", userID).Msg("=== API check starting ===")
	c.get("/health", false)
	c.get("/api/system/status", false)
	c.get("/api/instruments", false)
	c.get("/api/prices/"+assetID, false)
	c.get("/api/signals/"+assetID, false)

	if place {
		c.post("/api/trades", map[string]any{
			"asset_id":  assetID,
			"direction": "UP",
			"stake":     "1",
			"duration":  1,
			"mode":      "DEMO",
		})
	}
	c.get("/api/trades/active", true)
	c.get("/api/trades/history?limit=5", true)
	c.get("/api/stats", true)
	c.get("/api/wallets", true)

	log.Info().Int("failures", c.failures).Msg("=== API check finished ===")
	if c.failures > 0 {
		os.Exit(1)
	}
}

type checker struct {
	base     string
	token    string
	http     *http.Client
	failures int
}

func (c *checker) get(path string, auth bool) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("build request")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.do(req)
}

func (c *checker) post(path string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		log.Fatal().Err(err).Msg("encode body")
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.do(req)
}

func (c *checker) do(req *http.Request) {
	path := req.URL.RequestURI()
	resp, err := c.http.Do(req)
	if err != nil {
		c.failures++
		log.Error().Err(err).Str("path", path).Msg("request failed")
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	ev := log.Info()
	if resp.StatusCode >= 400 {
		c.failures++
		ev = log.Error()
	}
	ev.Str("method", req.Method).Str("path", path).Int("status", resp.StatusCode).
		Str("body", fmt.Sprintf("%.200s", body)).Msg("checked")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
