package main

import (
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"options-core/internal/api"
	"options-core/internal/logger"
	"options-core/internal/notify"
	"options-core/pkg/config"
)

// user_stream_check connects to /ws as a user and logs every event it receives.
//
// Usage:
//
//	go run ./scripts/user_stream_check
//
// Environment: CHECK_BASE_URL (default "http://localhost:8080"), CHECK_USER_ID
// (default "api-check"), CHECK_DURATION (default "30s"). Price updates are
// summarized; trade events are logged in full.

func main() {
	logger.Setup("info", "console")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	base := getenv("CHECK_BASE_URL", "http://localhost:8080")
	userID := getenv("CHECK_USER_ID", "api-check")
	duration, err := time.ParseDuration(getenv("CHECK_DURATION", "30s"))
	if err != nil {
		log.Fatal().Err(err).Msg("CHECK_DURATION")
	}

	token, err := api.GenerateToken(userID, cfg.JWTSecret, time.Now().Add(time.Hour))
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	u, err := url.Parse(base)
	if err != nil {
		log.Fatal().Err(err).Msg("CHECK_BASE_URL")
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", u.Redacted()).Msg("dial")
	}
	defer conn.Close()
	log.Info().Str("user", userID).Dur("duration", duration).Msg("=== user stream check starting ===")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	deadline := time.After(duration)

	counts := make(map[string]int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev notify.Event
			if err := conn.ReadJSON(&ev); err != nil {
				log.Warn().Err(err).Msg("stream closed")
				return
			}
			counts[ev.Type]++
			switch ev.Type {
			case notify.TypeTradeUpdate, notify.TypeTradeResult:
				log.Info().Str("type", ev.Type).Interface("payload", ev.Payload).Msg("[EVENT]")
			default:
				log.Debug().Str("type", ev.Type).Msg("[EVENT]")
			}
		}
	}()

	select {
	case <-deadline:
	case <-interrupt:
	case <-done:
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	<-done

	log.Info().Interface("events", counts).Msg("=== user stream check finished ===")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
