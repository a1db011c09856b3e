package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TriggerType string

const (
	TriggerSingle TriggerType = "single"
	TriggerOCO    TriggerType = "OCO"
)

type GttStatus string

const (
	GttStatusActive    GttStatus = "ACTIVE"
	GttStatusTriggered GttStatus = "TRIGGERED"
	GttStatusCancelled GttStatus = "CANCELLED"
	GttStatusExpired   GttStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed.
func (s GttStatus) Terminal() bool {
	return s != GttStatusActive
}

// RestingKind tells the engine how a resting record was created.
type RestingKind string

const (
	// RestingGtt is a user-created GTT (single or OCO).
	RestingGtt RestingKind = "gtt"
	// RestingStop is a canonical STOP_LIMIT order waiting for its trigger.
	RestingStop RestingKind = "stop"
	// RestingLimit is a MARKET/LIMIT order whose immediate execution did not
	// complete. It is never fired locally; the authority evaluates it per tick.
	RestingLimit RestingKind = "limit"
)

type Leg string

const (
	LegSingle   Leg = "single"
	LegTarget   Leg = "target"
	LegStoploss Leg = "stoploss"
)

// GttOrder is one resting record. OCO legs share this record so that only
// one of them can ever fire.
type GttOrder struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	ChallengeID     string      `json:"challengeId"`
	Symbol          string      `json:"symbol,omitempty"`
	InstrumentToken string      `json:"instrumentToken,omitempty"`
	Side            Side        `json:"side"`
	OrderType       OrderType   `json:"orderType,omitempty"`
	Quantity        int64       `json:"quantity"`
	Kind            RestingKind `json:"kind"`

	// Price is the limit price used once the trigger fires.
	Price                decimal.NullDecimal `json:"price"`
	TriggerType          TriggerType         `json:"triggerType"`
	TriggerPrice         decimal.NullDecimal `json:"triggerPrice"`
	TargetTriggerPrice   decimal.NullDecimal `json:"targetTriggerPrice"`
	StoplossTriggerPrice decimal.NullDecimal `json:"stoplossTriggerPrice"`

	// Expiry is a calendar date; the zero value never expires.
	Expiry       time.Time         `json:"expiry,omitempty"`
	Status       GttStatus         `json:"status"`
	Legs         map[Leg]GttStatus `json:"legs,omitempty"`
	FiredLeg     Leg               `json:"firedLeg,omitempty"`
	CancelReason string            `json:"cancelReason,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (g GttOrder) InstrumentKey() string {
	return InstrumentKey(g.InstrumentToken, g.Symbol)
}

// ExpiredOn reports whether the expiry date is strictly before day's date.
func (g GttOrder) ExpiredOn(day time.Time) bool {
	if g.Expiry.IsZero() {
		return false
	}
	return DateOf(g.Expiry).Before(DateOf(day))
}

// Clone returns a copy that does not share maps with g.
func (g GttOrder) Clone() GttOrder {
	out := g
	if g.Legs != nil {
		out.Legs = make(map[Leg]GttStatus, len(g.Legs))
		for k, v := range g.Legs {
			out.Legs[k] = v
		}
	}
	if g.Meta != nil {
		out.Meta = make(map[string]string, len(g.Meta))
		for k, v := range g.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, "2006-01-02 15:04:05"}

// ParseDate accepts a plain calendar date or a full timestamp.
func ParseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// OrderStatus maps the resting status onto the canonical order status.
func (g GttOrder) OrderStatus() OrderStatus {
	switch g.Status {
	case GttStatusActive:
		return OrderStatusPending
	case GttStatusTriggered:
		return OrderStatusExecuted
	default:
		return OrderStatusCancelled
	}
}
