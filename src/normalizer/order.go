package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

// ErrValidation marks input that is rejected before any network call.
var ErrValidation = errors.New("validation failed")

// RawOrder is an order request as the user sent it, field aliases resolved.
type RawOrder struct {
	ID              string
	UserID          string
	ChallengeID     string
	Symbol          string
	InstrumentToken string
	Side            string
	Type            string
	TriggerType     string
	Price           decimal.NullDecimal
	TriggerPrice    decimal.NullDecimal
	Quantity        decimal.NullDecimal
}

// RawOrderFromFields resolves the accepted aliases of a raw order payload.
func RawOrderFromFields(f Fields) RawOrder {
	return RawOrder{
		ID:              f.String("id", "orderId", "order_id"),
		UserID:          f.String("userId", "user_id"),
		ChallengeID:     f.String("challengeId", "challenge_id"),
		Symbol:          f.String("symbol", "tradingsymbol"),
		InstrumentToken: f.String("instrumentToken", "instrument_token", "token"),
		Side:            f.String("side", "transaction_type", "transactionType"),
		Type:            f.String("type", "order_type", "orderType"),
		TriggerType:     f.String("triggerType", "trigger_type"),
		Price:           f.Decimal("price", "limit_price", "limitPrice"),
		TriggerPrice:    f.Decimal("triggerPrice", "trigger_price", "stopPrice", "stop_price"),
		Quantity:        f.Decimal("quantity", "qty"),
	}
}

func (r *RawOrder) UnmarshalJSON(b []byte) error {
	fields, err := DecodeFields(b)
	if err != nil {
		return err
	}
	*r = RawOrderFromFields(fields)
	return nil
}

var stopTypes = map[string]bool{
	"STOP_LIMIT": true,
	"STOPLIMIT":  true,
	"STOP":       true,
	"SL":         true,
	"SL_L":       true,
	"SL_M":       true,
}

// ParseSide maps the accepted side spellings onto BUY/SELL.
func ParseSide(s string) (model.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "LONG":
		return model.SideBuy, nil
	case "SELL", "S", "SHORT":
		return model.SideSell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrValidation, s)
}

func canonicalRawType(s string) string {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.ReplaceAll(t, "-", "_")
	return strings.ReplaceAll(t, " ", "_")
}

// Normalize converts a raw order and the current last traded price into a
// canonical order. ltp may be invalid when no price is known; auto-upgrade is
// then skipped. A non-positive tickSize uses DefaultTickSize.
func Normalize(raw RawOrder, ltp decimal.NullDecimal, tickSize decimal.Decimal) (model.Order, error) {
	if !tickSize.IsPositive() {
		tickSize = DefaultTickSize
	}

	side, err := ParseSide(raw.Side)
	if err != nil {
		return model.Order{}, err
	}
	qty, err := quantity(raw.Quantity)
	if err != nil {
		return model.Order{}, err
	}
	if raw.Symbol == "" && raw.InstrumentToken == "" {
		return model.Order{}, fmt.Errorf("%w: symbol or instrument token required", ErrValidation)
	}

	price := positive(RoundNullToTick(raw.Price, tickSize))
	trigger := positive(RoundNullToTick(raw.TriggerPrice, tickSize))
	if raw.Price.Valid && !price.Valid {
		return model.Order{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if raw.TriggerPrice.Valid && !trigger.Valid {
		return model.Order{}, fmt.Errorf("%w: trigger price must be positive", ErrValidation)
	}

	rawType := canonicalRawType(raw.Type)
	order := model.Order{
		ID:              raw.ID,
		UserID:          raw.UserID,
		ChallengeID:     raw.ChallengeID,
		Symbol:          raw.Symbol,
		InstrumentToken: raw.InstrumentToken,
		Side:            side,
		Quantity:        qty,
		Status:          model.OrderStatusPending,
		Meta:            map[string]string{model.MetaNormalized: "true"},
	}
	if raw.Type != "" {
		order.Meta[model.MetaRawType] = raw.Type
	}

	switch {
	case trigger.Valid || raw.TriggerType != "" || stopTypes[rawType]:
		if !trigger.Valid {
			trigger = price
		}
		if !price.Valid {
			price = trigger
		}
		if !price.Valid {
			return model.Order{}, fmt.Errorf("%w: stop order needs a price or trigger price", ErrValidation)
		}
		order.Type = model.OrderTypeStopLimit
		order.Price = price
		order.TriggerPrice = trigger

	case rawType == "LIMIT" || (rawType == "" && price.Valid):
		if !price.Valid {
			return model.Order{}, fmt.Errorf("%w: limit order needs a price", ErrValidation)
		}
		order.Type = model.OrderTypeLimit
		order.Price = price
		if ltp.Valid && notYetReached(side, price.Decimal, ltp.Decimal) {
			order.Type = model.OrderTypeStopLimit
			order.TriggerPrice = price
			order.Meta[model.MetaAutoUpgradedFrom] = string(model.OrderTypeLimit)
		}

	case rawType == "MARKET" || rawType == "MKT" || rawType == "":
		order.Type = model.OrderTypeMarket

	default:
		return model.Order{}, fmt.Errorf("%w: unknown order type %q", ErrValidation, raw.Type)
	}

	return order, nil
}

// notYetReached reports whether a limit price is on the far side of the
// market: a BUY above ltp or a SELL below it has to wait for the market.
func notYetReached(side model.Side, price, ltp decimal.Decimal) bool {
	if side == model.SideBuy {
		return price.GreaterThan(ltp)
	}
	return price.LessThan(ltp)
}

func quantity(q decimal.NullDecimal) (int64, error) {
	if !q.Valid || !q.Decimal.IsPositive() || !q.Decimal.Equal(q.Decimal.Truncate(0)) {
		return 0, fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	}
	return q.Decimal.IntPart(), nil
}

func positive(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid || !d.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return d
}
