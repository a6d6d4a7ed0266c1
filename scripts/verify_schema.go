package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"options-core/internal/logger"
	"options-core/pkg/config"
	"options-core/pkg/db"
)

// verify_schema checks that the options-core tables and their key columns exist.
//
// Usage:
//
//	DB_PATH=./data/options.db go run ./scripts/verify_schema.go

var expected = map[string][]string{
	"trades":       {"id", "user_id", "asset_id", "direction", "stake", "entry_price", "exit_price", "result", "payout", "end_time_ms", "mode"},
	"wallets":      {"user_id", "mode", "balance"},
	"transactions": {"user_id", "mode", "type", "amount", "trade_id"},
	"user_stats":   {"user_id", "total_trades", "wins", "losses"},
	"price_ticks":  {"symbol", "price", "ts_ms"},
}

// Money must be stored as integer units, never REAL.
var moneyColumns = map[string][]string{
	"trades":       {"stake", "payout", "return_percent"},
	"wallets":      {"balance"},
	"transactions": {"amount"},
	"user_stats":   {"total_invested", "total_earned"},
}

func main() {
	logger.Setup("info", "console")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	fmt.Printf("Verifying database at: %s\n", cfg.DBPath)
	missing := 0
	for _, table := range []string{"trades", "wallets", "transactions", "user_stats", "price_ticks"} {
		cols, err := columns(database, table)
		if err != nil {
			log.Fatal().Err(err).Str("table", table).Msg("inspect table")
		}
		if len(cols) == 0 {
			fmt.Printf("❌ %s table MISSING\n", table)
			missing++
			continue
		}
		for _, c := range expected[table] {
			if _, ok := cols[c]; !ok {
				fmt.Printf("❌ %s.%s column MISSING\n", table, c)
				missing++
			}
		}
		for _, c := range moneyColumns[table] {
			if typ, ok := cols[c]; ok && !strings.EqualFold(typ, "INTEGER") {
				fmt.Printf("❌ %s.%s is %s, want INTEGER\n", table, c, typ)
				missing++
			}
		}
		fmt.Printf("✓ %s\n", table)
	}
	if missing > 0 {
		os.Exit(1)
	}
}

func columns(database *db.Database, table string) (map[string]string, error) {
	rows, err := database.DB.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[name] = typ
	}
	return out, rows.Err()
}
