package trigger

import (
	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

type Action string

const (
	ActionFire   Action = "fire"
	ActionExpire Action = "expire"
)

// Decision is what the evaluator wants done with one resting order.
type Decision struct {
	Order        model.GttOrder
	Action       Action
	Leg          model.Leg
	TriggerPrice decimal.Decimal
	// CancelledLeg is the OCO sibling that goes CANCELLED with this fire.
	CancelledLeg model.Leg
	Tick         model.Tick
}

// Evaluate returns the decisions for tick over the resting orders. It does
// no I/O and does not modify resting; applying the decisions is the caller's
// job. Orders of other instruments and orders that are no longer ACTIVE are
// skipped, so evaluating the same tick twice is harmless.
func Evaluate(tick model.Tick, resting []model.GttOrder) []Decision {
	var out []Decision
	for _, o := range resting {
		if o.Status != model.GttStatusActive {
			continue
		}
		if !matchesInstrument(tick, o) {
			continue
		}
		if o.ExpiredOn(tick.Time) {
			out = append(out, Decision{Order: o, Action: ActionExpire, Tick: tick})
			continue
		}
		if dec, ok := evaluateOrder(tick, o); ok {
			out = append(out, dec)
		}
	}
	return out
}

func matchesInstrument(tick model.Tick, o model.GttOrder) bool {
	id := tick.TokenOrSymbol
	return id != "" && (id == o.InstrumentToken || id == o.Symbol)
}

func evaluateOrder(tick model.Tick, o model.GttOrder) (Decision, bool) {
	switch o.Kind {
	case model.RestingLimit:
		// resolved by the authority's evaluate call, never locally
		return Decision{}, false
	case model.RestingStop:
		return evaluateSingle(tick, o)
	}

	switch o.TriggerType {
	case model.TriggerOCO:
		return evaluateOCO(tick, o)
	default:
		return evaluateSingle(tick, o)
	}
}

func evaluateSingle(tick model.Tick, o model.GttOrder) (Decision, bool) {
	if !o.TriggerPrice.Valid {
		return Decision{}, false
	}
	trigger := o.TriggerPrice.Decimal
	if !Crossed(o.Side, tick.LTP, trigger) {
		return Decision{}, false
	}
	return Decision{
		Order:        o,
		Action:       ActionFire,
		Leg:          model.LegSingle,
		TriggerPrice: trigger,
		Tick:         tick,
	}, true
}

// evaluateOCO checks the target leg before the stoploss leg. When inverted
// prices make both legs fire on the same tick the target leg wins.
func evaluateOCO(tick model.Tick, o model.GttOrder) (Decision, bool) {
	if o.TargetTriggerPrice.Valid && TargetHit(o.Side, tick.LTP, o.TargetTriggerPrice.Decimal) {
		return Decision{
			Order:        o,
			Action:       ActionFire,
			Leg:          model.LegTarget,
			TriggerPrice: o.TargetTriggerPrice.Decimal,
			CancelledLeg: model.LegStoploss,
			Tick:         tick,
		}, true
	}
	if o.StoplossTriggerPrice.Valid && StoplossHit(o.Side, tick.LTP, o.StoplossTriggerPrice.Decimal) {
		return Decision{
			Order:        o,
			Action:       ActionFire,
			Leg:          model.LegStoploss,
			TriggerPrice: o.StoplossTriggerPrice.Decimal,
			CancelledLeg: model.LegTarget,
			Tick:         tick,
		}, true
	}
	return Decision{}, false
}

// Crossed is the single-leg condition: BUY fires at or above the trigger,
// SELL at or below it.
func Crossed(side model.Side, ltp, trigger decimal.Decimal) bool {
	if side == model.SideBuy {
		return ltp.GreaterThanOrEqual(trigger)
	}
	return ltp.LessThanOrEqual(trigger)
}

// TargetHit is the OCO take-profit condition. A SELL OCO exits a long, so the
// target sits above the market; a BUY OCO exits a short and mirrors it.
func TargetHit(side model.Side, ltp, target decimal.Decimal) bool {
	if side == model.SideSell {
		return ltp.GreaterThanOrEqual(target)
	}
	return ltp.LessThanOrEqual(target)
}

// StoplossHit is the OCO protective condition, the mirror of TargetHit.
func StoplossHit(side model.Side, ltp, stoploss decimal.Decimal) bool {
	if side == model.SideSell {
		return ltp.LessThanOrEqual(stoploss)
	}
	return ltp.GreaterThanOrEqual(stoploss)
}
