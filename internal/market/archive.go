package market

import "options-core/internal/persistence"

const insertTick = `INSERT INTO price_ticks (symbol, price, volume, ts_ms) VALUES (?, ?, ?, ?)`

// Archive persists generated ticks through a batch writer.
type Archive struct {
	w *persistence.BatchWriter
}

func NewArchive(w *persistence.BatchWriter) *Archive {
	return &Archive{w: w}
}

func (a *Archive) Record(t PriceTick) {
	a.w.WriteQuery(insertTick, t.Symbol, t.Price, t.Volume, t.Timestamp.UnixMilli())
}
