package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"tradesim/src/dispatcher"
	"tradesim/src/model"
	"tradesim/src/normalizer"
)

type orderSubmitter interface {
	Submit(ctx context.Context, order model.Order) (dispatcher.SubmitResult, error)
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", normalizer.ErrValidation, msg)
}

// normalizeRequest resolves the order aliases and the optional market price
// used to decide on the LIMIT to STOP_LIMIT upgrade.
func normalizeRequest(r *http.Request, tickSize decimal.Decimal) (model.Order, error) {
	fields, err := decodeFields(r)
	if err != nil {
		return model.Order{}, err
	}
	ltp := fields.Decimal("ltp", "last_price", "lastPrice")
	return normalizer.Normalize(normalizer.RawOrderFromFields(fields), ltp, tickSize)
}

// NormalizeOrderHandler returns the canonical form of a raw order without
// placing it.
func NormalizeOrderHandler(tickSize decimal.Decimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := normalizeRequest(r, tickSize)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// SubmitOrderHandler normalizes and places an order. Executed orders answer
// 200 with the trade; pending ones answer 202 with the resting record.
func SubmitOrderHandler(svc orderSubmitter, tickSize decimal.Decimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := normalizeRequest(r, tickSize)
		if err != nil {
			writeError(w, err)
			return
		}

		result, err := svc.Submit(r.Context(), order)
		if err != nil {
			writeError(w, err)
			return
		}

		status := http.StatusOK
		if result.Status == model.OrderStatusPending {
			status = http.StatusAccepted
		}
		writeJSON(w, status, result)
	}
}
