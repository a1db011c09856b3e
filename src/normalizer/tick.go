package normalizer

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"tradesim/src/model"
)

var (
	tickIdentityAliases = []string{"instrument_token", "token", "tradingsymbol"}
	tickPriceAliases    = []string{"last_price", "ltp", "price"}
	tickBidAliases      = []string{"best_bid", "bid"}
	tickAskAliases      = []string{"best_ask", "ask"}
	tickTimeAliases     = []string{"timestamp", "exchange_timestamp", "last_trade_time"}
)

var tickTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTick parses one raw tick payload. ok is false when the payload has no
// resolvable instrument or no finite positive last price; such frames are
// heartbeats or partial updates and are dropped.
func ParseTick(payload []byte, receivedAt time.Time) (model.Tick, bool) {
	fields, err := DecodeFields(payload)
	if err != nil {
		return model.Tick{}, false
	}
	return TickFromFields(fields, receivedAt)
}

// ParseTicks parses a payload holding one tick object or an array of them.
// Unusable entries are skipped.
func ParseTicks(payload []byte, receivedAt time.Time) []model.Tick {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] != '[' {
		if tick, ok := ParseTick(trimmed, receivedAt); ok {
			return []model.Tick{tick}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil
	}
	ticks := make([]model.Tick, 0, len(items))
	for _, item := range items {
		if tick, ok := ParseTick(item, receivedAt); ok {
			ticks = append(ticks, tick)
		}
	}
	return ticks
}

// TickFromFields builds a Tick from an already decoded payload.
func TickFromFields(fields Fields, receivedAt time.Time) (model.Tick, bool) {
	id := fields.String(tickIdentityAliases...)
	if id == "" {
		return model.Tick{}, false
	}

	ltp := fields.Decimal(tickPriceAliases...)
	if !ltp.Valid || !ltp.Decimal.IsPositive() {
		return model.Tick{}, false
	}

	tick := model.Tick{
		TokenOrSymbol: id,
		LTP:           ltp.Decimal,
		Bid:           positive(fields.Decimal(tickBidAliases...)),
		Ask:           positive(fields.Decimal(tickAskAliases...)),
		Time:          receivedAt,
	}
	if sym := fields.String("tradingsymbol"); sym != "" && sym != id {
		tick.Symbol = sym
	}
	if ts, ok := tickTime(fields); ok {
		tick.Time = ts
	}
	return tick, true
}

func tickTime(fields Fields) (time.Time, bool) {
	raw := fields.String(tickTimeAliases...)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range tickTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if !strings.ContainsAny(raw, "-:T") {
		if n := fields.Decimal(tickTimeAliases...); n.Valid && n.Decimal.IsPositive() {
			epoch := n.Decimal.IntPart()
			// millisecond epochs are 13 digits
			if epoch > 1e12 {
				return time.UnixMilli(epoch).UTC(), true
			}
			return time.Unix(epoch, 0).UTC(), true
		}
	}
	return time.Time{}, false
}
