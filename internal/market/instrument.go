package market

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Instrument is static configuration for one tradable asset.
type Instrument struct {
	ID            string          `yaml:"id" json:"id"`
	Symbol        string          `yaml:"symbol" json:"symbol"`
	BasePrice     float64         `yaml:"base_price" json:"base_price"`
	ReturnPercent decimal.Decimal `yaml:"-" json:"return_percent"`
	Volatility    float64         `yaml:"volatility" json:"volatility"`
}

type instrumentFile struct {
	Instruments []struct {
		ID            string  `yaml:"id"`
		Symbol        string  `yaml:"symbol"`
		BasePrice     float64 `yaml:"base_price"`
		ReturnPercent string  `yaml:"return_percent"`
		Volatility    float64 `yaml:"volatility"`
	} `yaml:"instruments"`
}

// DefaultVolatility bounds the per-tick relative perturbation.
const DefaultVolatility = 0.01

// DefaultInstruments is used when no catalog file is present.
func DefaultInstruments() []Instrument {
	rp := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
	return []Instrument{
		{ID: "eurusd", Symbol: "EURUSD", BasePrice: 1.0850, ReturnPercent: rp(80), Volatility: 0.005},
		{ID: "gbpusd", Symbol: "GBPUSD", BasePrice: 1.2650, ReturnPercent: rp(80), Volatility: 0.005},
		{ID: "usdjpy", Symbol: "USDJPY", BasePrice: 149.50, ReturnPercent: rp(78), Volatility: 0.005},
		{ID: "btcusd", Symbol: "BTCUSD", BasePrice: 43250, ReturnPercent: rp(85), Volatility: DefaultVolatility},
		{ID: "ethusd", Symbol: "ETHUSD", BasePrice: 2580, ReturnPercent: rp(85), Volatility: DefaultVolatility},
		{ID: "xauusd", Symbol: "XAUUSD", BasePrice: 2035, ReturnPercent: rp(75), Volatility: 0.0075},
	}
}

// LoadInstruments reads the YAML catalog at path, falling back to the defaults
// when the file does not exist.
func LoadInstruments(path string) ([]Instrument, error) {
	if path == "" {
		return DefaultInstruments(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultInstruments(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}
	return ParseInstruments(data)
}

// ParseInstruments decodes and validates a YAML catalog.
func ParseInstruments(data []byte) ([]Instrument, error) {
	var f instrumentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, errors.New("instruments: catalog is empty")
	}

	seen := make(map[string]bool)
	out := make([]Instrument, 0, len(f.Instruments))
	for _, raw := range f.Instruments {
		symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
		if symbol == "" {
			return nil, errors.New("instruments: symbol is required")
		}
		if raw.BasePrice <= 0 {
			return nil, fmt.Errorf("instruments: %s base_price must be > 0", symbol)
		}
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			id = strings.ToLower(symbol)
		}
		if seen[id] || seen[symbol] {
			return nil, fmt.Errorf("instruments: duplicate %s", symbol)
		}
		seen[id], seen[symbol] = true, true

		rp := decimal.Zero
		if raw.ReturnPercent != "" {
			v, err := decimal.NewFromString(raw.ReturnPercent)
			if err != nil {
				return nil, fmt.Errorf("instruments: %s return_percent: %w", symbol, err)
			}
			rp = v
		}
		if rp.IsNegative() {
			return nil, fmt.Errorf("instruments: %s return_percent must be >= 0", symbol)
		}
		vol := raw.Volatility
		if vol <= 0 {
			vol = DefaultVolatility
		}
		out = append(out, Instrument{
			ID:            id,
			Symbol:        symbol,
			BasePrice:     raw.BasePrice,
			ReturnPercent: rp,
			Volatility:    vol,
		})
	}
	return out, nil
}

// Catalog indexes instruments by asset id and by symbol.
type Catalog struct {
	list     []Instrument
	byID     map[string]Instrument
	bySymbol map[string]Instrument
}

func NewCatalog(instruments []Instrument) *Catalog {
	c := &Catalog{
		list:     append([]Instrument(nil), instruments...),
		byID:     make(map[string]Instrument, len(instruments)),
		bySymbol: make(map[string]Instrument, len(instruments)),
	}
	for _, in := range instruments {
		c.byID[in.ID] = in
		c.bySymbol[in.Symbol] = in
	}
	return c
}

// ByID looks up an instrument by its asset id.
func (c *Catalog) ByID(id string) (Instrument, bool) {
	in, ok := c.byID[id]
	return in, ok
}

func (c *Catalog) BySymbol(symbol string) (Instrument, bool) {
	in, ok := c.bySymbol[strings.ToUpper(symbol)]
	return in, ok
}

// All returns the instruments in catalog order.
func (c *Catalog) All() []Instrument {
	return append([]Instrument(nil), c.list...)
}

func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.list))
	for i, in := range c.list {
		out[i] = in.Symbol
	}
	return out
}
