package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tradesim/src/connectors"
)

type tradeService interface {
	Close(ctx context.Context, userID, challengeID, tradeID string, exitPrice decimal.NullDecimal) (*connectors.Trade, error)
	AddToTrade(ctx context.Context, userID, challengeID, tradeID string, addQuantity, addPrice decimal.NullDecimal) (*connectors.Trade, error)
}

type tradeResponse struct {
	Success bool              `json:"success"`
	Trade   *connectors.Trade `json:"trade,omitempty"`
}

// CloseTradeHandler squares off an open trade at the given exit price.
func CloseTradeHandler(svc tradeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeFields(r)
		if err != nil {
			writeError(w, err)
			return
		}

		trade, err := svc.Close(r.Context(),
			fields.String("userId", "user_id"),
			fields.String("challengeId", "challenge_id"),
			chi.URLParam(r, "tradeId"),
			fields.Decimal("exitPrice", "exit_price", "price"),
		)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tradeResponse{Success: true, Trade: trade})
	}
}

// AddToTradeHandler adds quantity to an open trade.
func AddToTradeHandler(svc tradeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeFields(r)
		if err != nil {
			writeError(w, err)
			return
		}

		trade, err := svc.AddToTrade(r.Context(),
			fields.String("userId", "user_id"),
			fields.String("challengeId", "challenge_id"),
			chi.URLParam(r, "tradeId"),
			fields.Decimal("addQuantity", "add_quantity", "quantity"),
			fields.Decimal("addPrice", "add_price", "price"),
		)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tradeResponse{Success: true, Trade: trade})
	}
}
