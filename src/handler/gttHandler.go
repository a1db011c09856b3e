package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tradesim/src/gtt"
	"tradesim/src/model"
	"tradesim/src/normalizer"
)

type gttService interface {
	CreateGtt(ctx context.Context, g model.GttOrder) (model.GttOrder, error)
	CancelGtt(ctx context.Context, id string) (model.GttOrder, gtt.TransitionResult, error)
}

type gttLister interface {
	List(userID string) []model.GttOrder
}

type eventLister interface {
	ListByOrder(ctx context.Context, orderID string) ([]model.TriggerEvent, error)
}

type cancelResponse struct {
	Order  model.GttOrder        `json:"order"`
	Result gtt.TransitionResult `json:"result"`
}

// gttFromFields builds a GTT request from a raw payload. Range checks are
// left to the resting-order validation.
func gttFromFields(f normalizer.Fields) (model.GttOrder, error) {
	g := model.GttOrder{
		ID:                   f.String("id", "orderId"),
		UserID:               f.String("userId", "user_id"),
		ChallengeID:          f.String("challengeId", "challenge_id"),
		Symbol:               f.String("symbol", "tradingsymbol"),
		InstrumentToken:      f.String("instrumentToken", "instrument_token", "token"),
		OrderType:            model.OrderType(strings.ToUpper(f.String("orderType", "order_type"))),
		Price:                f.Decimal("price", "limitPrice", "limit_price"),
		TriggerPrice:         f.Decimal("triggerPrice", "trigger_price"),
		TargetTriggerPrice:   f.Decimal("targetTriggerPrice", "target_trigger_price", "target"),
		StoplossTriggerPrice: f.Decimal("stoplossTriggerPrice", "stoploss_trigger_price", "stoploss"),
		Kind:                 model.RestingGtt,
	}

	side, err := normalizer.ParseSide(f.String("side", "transaction_type", "transactionType"))
	if err != nil {
		return model.GttOrder{}, err
	}
	g.Side = side

	qty := f.Decimal("quantity", "qty")
	if !qty.Valid || !qty.Decimal.Equal(qty.Decimal.Truncate(0)) {
		return model.GttOrder{}, validationError("quantity must be an integer")
	}
	g.Quantity = qty.Decimal.IntPart()

	switch strings.ToLower(f.String("triggerType", "trigger_type")) {
	case "", "single":
		g.TriggerType = model.TriggerSingle
	case "oco", "two-leg", "two_leg":
		g.TriggerType = model.TriggerOCO
	default:
		return model.GttOrder{}, validationError("triggerType must be single or OCO")
	}

	if raw := f.String("expiry", "expiresAt", "expires_at"); raw != "" {
		expiry, err := model.ParseDate(raw)
		if err != nil {
			return model.GttOrder{}, validationError("expiry must be a date (YYYY-MM-DD)")
		}
		g.Expiry = model.DateOf(expiry)
	}
	return g, nil
}

// CreateGttHandler registers a GTT (single or OCO).
func CreateGttHandler(svc gttService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeFields(r)
		if err != nil {
			writeError(w, err)
			return
		}
		g, err := gttFromFields(fields)
		if err != nil {
			writeError(w, err)
			return
		}

		created, err := svc.CreateGtt(r.Context(), g)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// ListGttHandler lists a user's resting orders, terminal ones included.
func ListGttHandler(view gttLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")
		if userID == "" {
			writeError(w, validationError("userId is required"))
			return
		}
		orders := view.List(userID)
		if orders == nil {
			orders = []model.GttOrder{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

// CancelGttHandler cancels a resting order. Cancelling a terminal order is
// not an error; the result says already_terminal.
func CancelGttHandler(svc gttService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, res, err := svc.CancelGtt(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cancelResponse{Order: order, Result: res})
	}
}

// GttEventsHandler returns the trigger journal of one order. Without a
// database there is no journal and it answers 404.
func GttEventsHandler(events eventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if events == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "audit trail disabled"})
			return
		}
		list, err := events.ListByOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []model.TriggerEvent{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
