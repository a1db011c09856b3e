package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers on every wire this service speaks.
	decimal.MarshalJSONWithoutQuotes = true
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Meta keys written by the normalizer. Diagnostic only.
const (
	MetaNormalized       = "normalized"
	MetaAutoUpgradedFrom = "autoUpgradedFrom"
	MetaRawType          = "rawType"
)

// Order is the canonical order produced by the normalizer.
// Only Status changes after normalization.
type Order struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	ChallengeID     string              `json:"challengeId"`
	Symbol          string              `json:"symbol,omitempty"`
	InstrumentToken string              `json:"instrumentToken,omitempty"`
	Side            Side                `json:"side"`
	Type            OrderType           `json:"type"`
	Price           decimal.NullDecimal `json:"price"`
	TriggerPrice    decimal.NullDecimal `json:"triggerPrice"`
	Quantity        int64               `json:"quantity"`
	Status          OrderStatus         `json:"status"`
	Meta            map[string]string   `json:"meta,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// InstrumentKey is the identity used to shard resting orders and match ticks.
// The exchange token wins over the trading symbol when both are known.
func (o Order) InstrumentKey() string {
	return InstrumentKey(o.InstrumentToken, o.Symbol)
}

// InstrumentKey picks the canonical instrument identity.
func InstrumentKey(token, symbol string) string {
	if token != "" {
		return token
	}
	return symbol
}
