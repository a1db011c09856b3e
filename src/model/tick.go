package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one market-data update for an instrument. Symbol is set only when
// the payload named the instrument by both token and trading symbol.
type Tick struct {
	TokenOrSymbol string              `json:"tokenOrSymbol"`
	Symbol        string              `json:"symbol,omitempty"`
	LTP           decimal.Decimal     `json:"ltp"`
	Bid           decimal.NullDecimal `json:"bid"`
	Ask           decimal.NullDecimal `json:"ask"`
	Time          time.Time           `json:"time"`
}
