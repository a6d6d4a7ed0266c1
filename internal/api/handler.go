package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"options-core/internal/engine"
	"options-core/internal/events"
	"options-core/internal/monitor"
)

// Server wires HTTP endpoints around the engine service and event bus.
type Server struct {
	Router    *gin.Engine
	Engine    engine.Service
	Bus       *events.Bus
	Metrics   *monitor.SystemMetrics
	JWTSecret string
}

// ServerConfig carries the collaborators and limits for NewServer.
type ServerConfig struct {
	Engine         engine.Service
	Bus            *events.Bus
	Metrics        *monitor.SystemMetrics
	JWTSecret      string
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second per IP
	RateBurst      int
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 50
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(cfg.Metrics))
	r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Engine:    cfg.Engine,
		Bus:       cfg.Bus,
		Metrics:   cfg.Metrics,
		JWTSecret: cfg.JWTSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/metrics/prom", s.getPromMetrics)

		// Market data (public)
		api.GET("/instruments", s.getInstruments)
		api.GET("/prices/:symbol", s.getPrice)
		api.GET("/prices/:symbol/history", s.getPriceHistory)
		api.GET("/signals", s.getSignals)
		api.GET("/signals/:symbol", s.getSignal)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/trades", s.placeTrade)
			protected.GET("/trades/active", s.getActiveTrades)
			protected.GET("/trades/history", s.getTradeHistory)
			protected.GET("/stats", s.getStats)
			protected.GET("/wallets", s.getWallets)
			protected.GET("/transactions", s.getTransactions)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler exposes the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.Router
}
