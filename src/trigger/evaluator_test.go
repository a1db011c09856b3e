package trigger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

var day = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func tick(id, ltp string) model.Tick {
	return model.Tick{TokenOrSymbol: id, LTP: d(ltp), Time: day}
}

func single(id string, side model.Side, trigger string) model.GttOrder {
	return model.GttOrder{
		ID:           id,
		Symbol:       "INFY",
		Side:         side,
		Quantity:     1,
		Kind:         model.RestingGtt,
		TriggerType:  model.TriggerSingle,
		TriggerPrice: nd(trigger),
		Status:       model.GttStatusActive,
	}
}

func oco(id string, side model.Side, target, stoploss string) model.GttOrder {
	return model.GttOrder{
		ID:                   id,
		Symbol:               "INFY",
		Side:                 side,
		Quantity:             1,
		Kind:                 model.RestingGtt,
		TriggerType:          model.TriggerOCO,
		TargetTriggerPrice:   nd(target),
		StoplossTriggerPrice: nd(stoploss),
		Status:               model.GttStatusActive,
		Legs:                 map[model.Leg]model.GttStatus{model.LegTarget: model.GttStatusActive, model.LegStoploss: model.GttStatusActive},
	}
}

func TestEvaluateSingleLegBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		side    model.Side
		trigger string
		ltp     string
		fires   bool
	}{
		{name: "buy below trigger", side: model.SideBuy, trigger: "50", ltp: "49.9", fires: false},
		{name: "buy at trigger", side: model.SideBuy, trigger: "50", ltp: "50", fires: true},
		{name: "buy above trigger", side: model.SideBuy, trigger: "50", ltp: "50.1", fires: true},
		{name: "sell above trigger", side: model.SideSell, trigger: "50", ltp: "50.1", fires: false},
		{name: "sell at trigger", side: model.SideSell, trigger: "50", ltp: "50", fires: true},
		{name: "sell below trigger", side: model.SideSell, trigger: "50", ltp: "49", fires: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tick("INFY", tc.ltp), []model.GttOrder{single("g1", tc.side, tc.trigger)})
			if tc.fires != (len(got) == 1) {
				t.Fatalf("expected fires=%v, got %d decisions", tc.fires, len(got))
			}
			if tc.fires && (got[0].Action != ActionFire || got[0].Leg != model.LegSingle) {
				t.Fatalf("unexpected decision: %+v", got[0])
			}
		})
	}
}

func TestEvaluateStopKind(t *testing.T) {
	stop := single("s1", model.SideBuy, "105")
	stop.Kind = model.RestingStop
	stop.TriggerType = ""

	if got := Evaluate(tick("INFY", "104.9"), []model.GttOrder{stop}); len(got) != 0 {
		t.Fatalf("expected no fire below trigger, got %+v", got)
	}
	got := Evaluate(tick("INFY", "105"), []model.GttOrder{stop})
	if len(got) != 1 || got[0].Action != ActionFire {
		t.Fatalf("expected stop to fire at trigger, got %+v", got)
	}
}

func TestEvaluateLimitKindNeverFiresLocally(t *testing.T) {
	lim := single("l1", model.SideBuy, "1")
	lim.Kind = model.RestingLimit
	if got := Evaluate(tick("INFY", "1000"), []model.GttOrder{lim}); len(got) != 0 {
		t.Fatalf("expected no local decision for limit kind, got %+v", got)
	}
}

func TestEvaluateOCOTargetFires(t *testing.T) {
	// sell target 120, sell stop 90, ltp 121
	got := Evaluate(tick("INFY", "121"), []model.GttOrder{oco("o1", model.SideSell, "120", "90")})
	if len(got) != 1 {
		t.Fatalf("expected one decision, got %d", len(got))
	}
	if got[0].Leg != model.LegTarget || got[0].CancelledLeg != model.LegStoploss {
		t.Fatalf("expected target leg to fire and cancel stoploss, got %+v", got[0])
	}
	if !got[0].TriggerPrice.Equal(d("120")) {
		t.Fatalf("unexpected trigger price %s", got[0].TriggerPrice)
	}
}

func TestEvaluateOCOStoplossFires(t *testing.T) {
	got := Evaluate(tick("INFY", "89"), []model.GttOrder{oco("o1", model.SideSell, "120", "90")})
	if len(got) != 1 || got[0].Leg != model.LegStoploss || got[0].CancelledLeg != model.LegTarget {
		t.Fatalf("expected stoploss leg to fire, got %+v", got)
	}

	got = Evaluate(tick("INFY", "100"), []model.GttOrder{oco("o1", model.SideSell, "120", "90")})
	if len(got) != 0 {
		t.Fatalf("expected nothing between the legs, got %+v", got)
	}
}

func TestEvaluateOCOBuySideMirrors(t *testing.T) {
	// covering a short: target below market, stop above it
	order := oco("o2", model.SideBuy, "80", "110")
	if got := Evaluate(tick("INFY", "79.5"), []model.GttOrder{order}); len(got) != 1 || got[0].Leg != model.LegTarget {
		t.Fatalf("expected buy target to fire, got %+v", got)
	}
	if got := Evaluate(tick("INFY", "110"), []model.GttOrder{order}); len(got) != 1 || got[0].Leg != model.LegStoploss {
		t.Fatalf("expected buy stoploss to fire, got %+v", got)
	}
}

func TestEvaluateOCOInvertedLegsTargetWins(t *testing.T) {
	// inverted data: both legs would fire at 100
	got := Evaluate(tick("INFY", "100"), []model.GttOrder{oco("o3", model.SideSell, "90", "120")})
	if len(got) != 1 {
		t.Fatalf("expected exactly one decision, got %d", len(got))
	}
	if got[0].Leg != model.LegTarget || got[0].CancelledLeg != model.LegStoploss {
		t.Fatalf("expected target to win the tie, got %+v", got[0])
	}
}

func TestEvaluateExpiryPrecedesTrigger(t *testing.T) {
	order := single("g5", model.SideBuy, "50")
	order.Expiry = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	after := model.Tick{TokenOrSymbol: "INFY", LTP: d("50"), Time: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
	got := Evaluate(after, []model.GttOrder{order})
	if len(got) != 1 || got[0].Action != ActionExpire {
		t.Fatalf("expected expiry, got %+v", got)
	}

	sameDay := model.Tick{TokenOrSymbol: "INFY", LTP: d("50"), Time: time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)}
	got = Evaluate(sameDay, []model.GttOrder{order})
	if len(got) != 1 || got[0].Action != ActionFire {
		t.Fatalf("expected fire on the expiry date itself, got %+v", got)
	}
}

func TestEvaluateSkipsOtherInstrumentsAndTerminal(t *testing.T) {
	other := single("x", model.SideBuy, "1")
	other.Symbol = "TCS"
	done := single("y", model.SideBuy, "1")
	done.Status = model.GttStatusTriggered
	cancelled := single("z", model.SideBuy, "1")
	cancelled.Status = model.GttStatusCancelled

	if got := Evaluate(tick("INFY", "100"), []model.GttOrder{other, done, cancelled}); len(got) != 0 {
		t.Fatalf("expected no decisions, got %+v", got)
	}
}

func TestEvaluateMatchesTokenOrSymbol(t *testing.T) {
	order := single("t", model.SideSell, "10")
	order.InstrumentToken = "256265"

	if got := Evaluate(tick("256265", "9"), []model.GttOrder{order}); len(got) != 1 {
		t.Fatalf("expected token tick to match, got %d", len(got))
	}
	if got := Evaluate(tick("INFY", "9"), []model.GttOrder{order}); len(got) != 1 {
		t.Fatalf("expected symbol tick to match, got %d", len(got))
	}
}

func TestEvaluateIsPure(t *testing.T) {
	orders := []model.GttOrder{oco("o1", model.SideSell, "120", "90"), single("g1", model.SideBuy, "100")}
	first := Evaluate(tick("INFY", "121"), orders)
	second := Evaluate(tick("INFY", "121"), orders)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected two decisions each pass, got %d and %d", len(first), len(second))
	}
	for _, o := range orders {
		if o.Status != model.GttStatusActive {
			t.Fatalf("evaluate must not change input status, got %s", o.Status)
		}
	}
}
