package connectors

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient covers transport failures, timeouts, 408, 429 and 5xx.
	// The call had no effect that we know of and may be retried by a later tick.
	ErrTransient = errors.New("authority unavailable")
	// ErrRejected means the authority refused the request; retrying the same
	// request will not help without user action.
	ErrRejected = errors.New("rejected by authority")
)

// AuthorityRejectCodes maps authority reject codes to human-readable messages.
var AuthorityRejectCodes = map[string]string{
	"INVALID_ORDER":        "order is invalid",
	"INVALID_PRICE":        "price is invalid for this instrument",
	"INVALID_QUANTITY":     "quantity is invalid for this instrument",
	"INSUFFICIENT_FUNDS":   "not enough virtual balance",
	"RISK_LIMIT_EXCEEDED":  "risk limit exceeded",
	"CHALLENGE_NOT_ACTIVE": "trading challenge is not active",
	"CHALLENGE_NOT_FOUND":  "trading challenge not found",
	"PAYMENT_REQUIRED":     "challenge fee not paid",
	"TRADE_NOT_FOUND":      "trade not found",
	"TRADE_CLOSED":         "trade already closed",
	"ORDER_NOT_FOUND":      "order not found",
	"INSTRUMENT_NOT_FOUND": "instrument not found",
	"INSTRUMENT_SUSPENDED": "instrument suspended",
	"DUPLICATE_ORDER":      "duplicate order id",
	"GTT_LIMIT_EXCEEDED":   "too many active GTT orders",
	"UNAUTHORIZED":         "not allowed for this user",
}

// GetRejectMsg returns a human-readable message for a reject code.
func GetRejectMsg(code string) string {
	if msg, ok := AuthorityRejectCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_REJECT_%s", code)
}

// RejectedError carries the authority's reason for refusing a request.
type RejectedError struct {
	Status int
	Code   string
	Reason string
}

func (e *RejectedError) Error() string {
	reason := e.Reason
	if reason == "" && e.Code != "" {
		reason = GetRejectMsg(e.Code)
	}
	if e.Code == "" {
		return fmt.Sprintf("rejected by authority (HTTP %d): %s", e.Status, reason)
	}
	return fmt.Sprintf("rejected by authority (HTTP %d, %s): %s", e.Status, e.Code, reason)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }
