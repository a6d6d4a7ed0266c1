package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds environment-driven settings for the options core.
type Config struct {
	Port string

	// Storage
	DBPath       string
	StoreTimeout time.Duration
	TickArchive  bool // persist every simulated tick to price_ticks

	// Market simulation
	InstrumentsFile string
	TickInterval    time.Duration
	HistoryCapacity int
	SeedTicks       int
	RandomSeed      int64 // 0 means seed from the clock

	// Settlement and signals
	SweepInterval   time.Duration
	SignalInterval  time.Duration
	SignalTimeframe string
	SignalWindow    int

	ReconcileInterval time.Duration

	// Wallets
	DemoInitialBalance decimal.Decimal

	// Risk limits; a zero limit is disabled
	RiskEnabled    bool
	MinStake       decimal.Decimal
	MaxStake       decimal.Decimal
	MaxOpenTrades  int
	MaxDailyTrades int
	MaxDailyLoss   decimal.Decimal

	// HTTP
	JWTSecret      string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// Redis fan-out (disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// gRPC health (disabled when empty)
	HealthAddr string

	// Logging
	LogLevel  string
	LogFormat string // "console" or "json"
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	demo, err := decimal.NewFromString(getEnv("DEMO_INITIAL_BALANCE", "10000"))
	if err != nil {
		return nil, fmt.Errorf("DEMO_INITIAL_BALANCE: %w", err)
	}
	if demo.IsNegative() {
		return nil, fmt.Errorf("DEMO_INITIAL_BALANCE must not be negative")
	}

	minStake, err := getEnvDecimal("MIN_STAKE", "1")
	if err != nil {
		return nil, err
	}
	maxStake, err := getEnvDecimal("MAX_STAKE", "10000")
	if err != nil {
		return nil, err
	}
	maxLoss, err := getEnvDecimal("MAX_DAILY_LOSS", "0")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "./data/options.db"),
		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		TickArchive:        getEnv("TICK_ARCHIVE", "false") == "true",
		InstrumentsFile:    getEnv("INSTRUMENTS_FILE", "./instruments.yaml"),
		TickInterval:       getEnvDuration("TICK_INTERVAL", time.Second),
		HistoryCapacity:    getEnvInt("HISTORY_CAPACITY", 1000),
		SeedTicks:          getEnvInt("SEED_TICKS", 100),
		RandomSeed:         int64(getEnvInt("RANDOM_SEED", 0)),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Second),
		SignalInterval:     getEnvDuration("SIGNAL_INTERVAL", 5*time.Second),
		SignalTimeframe:    getEnv("SIGNAL_TIMEFRAME", "1m"),
		SignalWindow:       getEnvInt("SIGNAL_WINDOW", 100),
		ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", time.Minute),
		DemoInitialBalance: demo,
		RiskEnabled:        getEnv("RISK_ENABLED", "true") == "true",
		MinStake:           minStake,
		MaxStake:           maxStake,
		MaxOpenTrades:      getEnvInt("MAX_OPEN_TRADES", 50),
		MaxDailyTrades:     getEnvInt("MAX_DAILY_TRADES", 500),
		MaxDailyLoss:       maxLoss,
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 50),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		HealthAddr:         os.Getenv("HEALTH_ADDR"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "console")),
	}
	if cfg.SeedTicks > cfg.HistoryCapacity {
		cfg.SeedTicks = cfg.HistoryCapacity
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDecimal(key, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("500ms", "2s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}
