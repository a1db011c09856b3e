package connectors

import (
	"time"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

// -----------------------------
// EXECUTE NOW
// -----------------------------
type ExecuteNowRequest struct {
	UserID      string              `json:"userId"`
	ChallengeID string              `json:"challengeId"`
	OrderID     string              `json:"orderId"`
	LTP         decimal.NullDecimal `json:"ltp"`
	Order       *model.Order        `json:"order,omitempty"`
}

type Trade struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId,omitempty"`
	Symbol     string          `json:"symbol,omitempty"`
	Side       model.Side      `json:"side,omitempty"`
	Quantity   int64           `json:"quantity,omitempty"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	Status     string          `json:"status,omitempty"`
	ExecutedAt time.Time       `json:"executedAt,omitempty"`
}

// ExecuteNowResponse with Success=false and Rejected=false means the authority
// accepted the order but did not fill it yet.
type ExecuteNowResponse struct {
	Success  bool   `json:"success"`
	Trade    *Trade `json:"trade,omitempty"`
	Rejected bool   `json:"rejected,omitempty"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// -----------------------------
// EVALUATE
// -----------------------------
type EvaluateRequest struct {
	UserID        string              `json:"userId"`
	ChallengeID   string              `json:"challengeId"`
	TokenOrSymbol string              `json:"tokenOrSymbol"`
	Bid           decimal.NullDecimal `json:"bid"`
	Ask           decimal.NullDecimal `json:"ask"`
	LTP           decimal.Decimal     `json:"ltp"`
}

type FiredOrder struct {
	OrderID string              `json:"orderId"`
	TradeID string              `json:"tradeId,omitempty"`
	Price   decimal.NullDecimal `json:"price"`
}

type EvaluateResponse struct {
	Fired []FiredOrder `json:"fired"`
}

// -----------------------------
// TRADES
// -----------------------------
type CloseRequest struct {
	UserID      string          `json:"userId"`
	ChallengeID string          `json:"challengeId"`
	TradeID     string          `json:"tradeId"`
	ExitPrice   decimal.Decimal `json:"exitPrice"`
}

type AddRequest struct {
	UserID      string          `json:"userId"`
	ChallengeID string          `json:"challengeId"`
	TradeID     string          `json:"tradeId"`
	AddQuantity decimal.Decimal `json:"addQuantity"`
	AddPrice    decimal.Decimal `json:"addPrice"`
}

type TradeResponse struct {
	Success  bool   `json:"success"`
	Trade    *Trade `json:"trade,omitempty"`
	Rejected bool   `json:"rejected,omitempty"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// -----------------------------
// GTT ORDERS
// -----------------------------

// gttWire is the authority's GTT representation. Expiry is a plain date string.
type gttWire struct {
	ID                   string              `json:"id"`
	UserID               string              `json:"userId"`
	ChallengeID          string              `json:"challengeId"`
	Symbol               string              `json:"symbol,omitempty"`
	InstrumentToken      string              `json:"instrumentToken,omitempty"`
	Side                 model.Side          `json:"side"`
	OrderType            model.OrderType     `json:"orderType,omitempty"`
	Quantity             int64               `json:"quantity"`
	Price                decimal.NullDecimal `json:"price"`
	TriggerType          model.TriggerType   `json:"triggerType"`
	TriggerPrice         decimal.NullDecimal `json:"triggerPrice"`
	TargetTriggerPrice   decimal.NullDecimal `json:"targetTriggerPrice"`
	StoplossTriggerPrice decimal.NullDecimal `json:"stoplossTriggerPrice"`
	Expiry               string              `json:"expiry,omitempty"`
	Status               model.GttStatus     `json:"status"`
	FiredLeg             model.Leg           `json:"firedLeg,omitempty"`
	CreatedAt            time.Time           `json:"createdAt,omitempty"`
}

func toGttWire(g model.GttOrder) gttWire {
	w := gttWire{
		ID:                   g.ID,
		UserID:               g.UserID,
		ChallengeID:          g.ChallengeID,
		Symbol:               g.Symbol,
		InstrumentToken:      g.InstrumentToken,
		Side:                 g.Side,
		OrderType:            g.OrderType,
		Quantity:             g.Quantity,
		Price:                g.Price,
		TriggerType:          g.TriggerType,
		TriggerPrice:         g.TriggerPrice,
		TargetTriggerPrice:   g.TargetTriggerPrice,
		StoplossTriggerPrice: g.StoplossTriggerPrice,
		Status:               g.Status,
		FiredLeg:             g.FiredLeg,
		CreatedAt:            g.CreatedAt,
	}
	if !g.Expiry.IsZero() {
		w.Expiry = g.Expiry.UTC().Format("2006-01-02")
	}
	return w
}

func (w gttWire) toModel() model.GttOrder {
	g := model.GttOrder{
		ID:                   w.ID,
		UserID:               w.UserID,
		ChallengeID:          w.ChallengeID,
		Symbol:               w.Symbol,
		InstrumentToken:      w.InstrumentToken,
		Side:                 w.Side,
		OrderType:            w.OrderType,
		Quantity:             w.Quantity,
		Kind:                 model.RestingGtt,
		Price:                w.Price,
		TriggerType:          w.TriggerType,
		TriggerPrice:         w.TriggerPrice,
		TargetTriggerPrice:   w.TargetTriggerPrice,
		StoplossTriggerPrice: w.StoplossTriggerPrice,
		Status:               w.Status,
		FiredLeg:             w.FiredLeg,
		CreatedAt:            w.CreatedAt,
	}
	if g.TriggerType == "" {
		g.TriggerType = model.TriggerSingle
	}
	if g.Status == "" {
		g.Status = model.GttStatusActive
	}
	if w.Expiry != "" {
		if t, err := model.ParseDate(w.Expiry); err == nil {
			g.Expiry = t
		}
	}
	return g
}

type CancelGttResponse struct {
	Status model.GttStatus `json:"status"`
}

// errorBody is what the authority sends with 4xx responses.
type errorBody struct {
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
