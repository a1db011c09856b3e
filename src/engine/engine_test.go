package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/src/connectors"
	"tradesim/src/gtt"
	"tradesim/src/model"
	"tradesim/src/trigger"
)

type stubFirer struct {
	mu    sync.Mutex
	fired []string
}

func (s *stubFirer) Fire(_ context.Context, d trigger.Decision) model.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = append(s.fired, d.Order.ID)
	return model.Outcome{Kind: model.OutcomeSuccess, TradeID: "t-" + d.Order.ID}
}

func (s *stubFirer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fired)
}

type stubAuthority struct {
	mu        sync.Mutex
	evaluated []connectors.EvaluateRequest
	fired     []connectors.FiredOrder
	evalErr   error
	list      []model.GttOrder
	listErr   error
	listed    []string
}

func (s *stubAuthority) Evaluate(_ context.Context, in connectors.EvaluateRequest) (*connectors.EvaluateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluated = append(s.evaluated, in)
	if s.evalErr != nil {
		return nil, s.evalErr
	}
	if s.fired == nil {
		return nil, nil
	}
	return &connectors.EvaluateResponse{Fired: s.fired}, nil
}

func (s *stubAuthority) ListGtt(_ context.Context, userID string) ([]model.GttOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listed = append(s.listed, userID)
	return s.list, s.listErr
}

func (s *stubAuthority) evaluations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evaluated)
}

type stubRecorder struct {
	mu     sync.Mutex
	events []model.TriggerEvent
}

func (s *stubRecorder) Record(_ context.Context, events []model.TriggerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *stubRecorder) snapshot() []model.TriggerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TriggerEvent(nil), s.events...)
}

var today = time.Date(2025, 3, 4, 9, 15, 0, 0, time.UTC)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func tick(id, ltp string) model.Tick {
	return model.Tick{TokenOrSymbol: id, LTP: decimal.RequireFromString(ltp), Time: today}
}

func newTestEngine(t *testing.T, auth *stubAuthority) (*Engine, *gtt.Manager, *stubFirer, *stubRecorder, *logrustest.Hook) {
	t.Helper()
	logger, hook := logrustest.NewNullLogger()
	manager := gtt.NewManager().WithClock(func() time.Time { return today })
	firer := &stubFirer{}
	recorder := &stubRecorder{}
	e := NewEngine(logrus.NewEntry(logger), manager, firer, auth, recorder, Config{QueueSize: 8, FireTimeout: time.Second, IdleCheck: 10 * time.Millisecond})
	t.Cleanup(e.Stop)
	return e, manager, firer, recorder, hook
}

func TestDispatchFiresResting(t *testing.T) {
	auth := &stubAuthority{}
	e, manager, firer, recorder, _ := newTestEngine(t, auth)

	g, err := manager.Create(model.GttOrder{
		UserID: "u1", ChallengeID: "c1", Symbol: "INFY", Side: model.SideSell, Quantity: 1,
		TriggerType: model.TriggerOCO, TargetTriggerPrice: nd("120"), StoplossTriggerPrice: nd("90"),
		Expiry: today.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	require.NoError(t, e.Dispatch(tick("INFY", "121")))
	require.NoError(t, e.Dispatch(tick("INFY", "89")))

	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		got, _ := manager.Get(g.ID)
		return got.Status == model.GttStatusTriggered
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, firer.count())
	assert.Equal(t, model.TriggerActionFire, recorder.snapshot()[0].Action)
	require.Eventually(t, func() bool { return e.Workers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDispatchDropsTicksWithoutRestingOrders(t *testing.T) {
	e, manager, _, _, _ := newTestEngine(t, &stubAuthority{})

	for i := 0; i < 5000; i++ {
		require.NoError(t, e.Dispatch(tick(fmt.Sprintf("TOKEN%d", i), "100")))
	}
	assert.Equal(t, 0, e.Workers())

	_, err := manager.Park(model.Order{
		ID: "o1", UserID: "u1", ChallengeID: "c1", Symbol: "INFY", Side: model.SideBuy,
		Type: model.OrderTypeLimit, Price: nd("98"), Quantity: 1,
	}, model.RestingLimit)
	require.NoError(t, err)
	require.NoError(t, e.Dispatch(tick("INFY", "99")))
	require.NoError(t, e.Dispatch(tick("TCS", "99")))
	assert.Equal(t, 1, e.Workers())
}

func TestWorkerStopsWhenInstrumentGoesIdle(t *testing.T) {
	auth := &stubAuthority{}
	e, manager, _, _, _ := newTestEngine(t, auth)

	_, err := manager.Park(model.Order{
		ID: "o1", UserID: "u1", ChallengeID: "c1", Symbol: "INFY", Side: model.SideBuy,
		Type: model.OrderTypeLimit, Price: nd("98"), Quantity: 1,
	}, model.RestingLimit)
	require.NoError(t, err)

	require.NoError(t, e.Dispatch(tick("INFY", "99")))
	require.Eventually(t, func() bool { return auth.evaluations() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, e.Workers())

	_, _, err = manager.Cancel("o1", "")
	require.NoError(t, err)
	require.NoError(t, e.Dispatch(tick("INFY", "99")))
	require.Eventually(t, func() bool { return e.Workers() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, auth.evaluations())
}

func TestDispatchLearnsAliasFromTick(t *testing.T) {
	e, manager, firer, _, _ := newTestEngine(t, &stubAuthority{})

	g, err := manager.Create(model.GttOrder{
		UserID: "u1", ChallengeID: "c1", Symbol: "INFY", Side: model.SideBuy, Quantity: 1,
		TriggerType: model.TriggerSingle, TriggerPrice: nd("100"), Expiry: today,
	})
	require.NoError(t, err)

	withBoth := tick("408065", "101")
	withBoth.Symbol = "INFY"
	require.NoError(t, e.Dispatch(withBoth))

	require.Eventually(t, func() bool {
		got, _ := manager.Get(g.ID)
		return got.Status == model.GttStatusTriggered
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "408065", manager.Resolve("INFY"))
	assert.Equal(t, 1, firer.count())
}

func TestDispatchEvaluatesPendingLimitOrders(t *testing.T) {
	auth := &stubAuthority{fired: []connectors.FiredOrder{{OrderID: "o1"}}}
	e, manager, _, recorder, _ := newTestEngine(t, auth)

	_, err := manager.Park(model.Order{
		ID: "o1", UserID: "u1", ChallengeID: "c1", Symbol: "INFY", Side: model.SideBuy,
		Type: model.OrderTypeLimit, Price: nd("98"), Quantity: 1,
	}, model.RestingLimit)
	require.NoError(t, err)
	_, err = manager.Park(model.Order{
		ID: "o2", UserID: "u2", ChallengeID: "c9", Symbol: "TCS", Side: model.SideBuy,
		Type: model.OrderTypeLimit, Price: nd("10"), Quantity: 1,
	}, model.RestingLimit)
	require.NoError(t, err)

	require.NoError(t, e.Dispatch(tick("INFY", "97.5")))

	require.Eventually(t, func() bool {
		got, _ := manager.Get("o1")
		return got.Status == model.GttStatusTriggered
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, auth.evaluations())
	assert.Equal(t, "u1", auth.evaluated[0].UserID)
	assert.Equal(t, "INFY", auth.evaluated[0].TokenOrSymbol)

	got, _ := manager.Get("o2")
	assert.Equal(t, model.GttStatusActive, got.Status)
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.TriggerActionExecuted, recorder.snapshot()[0].Action)
}

func TestEvaluateErrorsAreLoggedAndSwallowed(t *testing.T) {
	auth := &stubAuthority{evalErr: connectors.ErrTransient}
	e, manager, _, _, hook := newTestEngine(t, auth)

	_, err := manager.Park(model.Order{
		ID: "o1", UserID: "u1", ChallengeID: "c1", Symbol: "INFY", Side: model.SideBuy,
		Type: model.OrderTypeMarket, Quantity: 1,
	}, model.RestingLimit)
	require.NoError(t, err)

	require.NoError(t, e.Dispatch(tick("INFY", "100")))
	require.NoError(t, e.Dispatch(tick("INFY", "101")))

	require.Eventually(t, func() bool { return auth.evaluations() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "pending order evaluation failed" && entry.Level == logrus.WarnLevel {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	got, _ := manager.Get("o1")
	assert.Equal(t, model.GttStatusActive, got.Status)
}

func TestDispatchAfterStop(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, &stubAuthority{})
	e.Stop()
	require.True(t, errors.Is(e.Dispatch(tick("INFY", "1")), ErrStopped))
	require.NoError(t, e.Dispatch(model.Tick{}))
}

func TestRunStopsOnCancel(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, &stubAuthority{})
	require.NoError(t, e.Dispatch(tick("INFY", "100")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	require.True(t, errors.Is(e.Dispatch(tick("INFY", "100")), ErrStopped))
}

func TestResyncUser(t *testing.T) {
	auth := &stubAuthority{}
	e, manager, _, _, _ := newTestEngine(t, auth)

	g, err := manager.Create(model.GttOrder{
		UserID: "u1", ChallengeID: "c1", Symbol: "INFY", Side: model.SideBuy, Quantity: 1,
		TriggerType: model.TriggerSingle, TriggerPrice: nd("50"), Expiry: today,
	})
	require.NoError(t, err)

	remote := g
	remote.Status = model.GttStatusTriggered
	remote.Legs = nil
	auth.list = []model.GttOrder{remote}

	require.NoError(t, e.ResyncUser(context.Background(), "u1"))
	got, _ := manager.Get(g.ID)
	assert.Equal(t, model.GttStatusTriggered, got.Status)

	auth.listErr = connectors.ErrTransient
	require.True(t, errors.Is(e.ResyncUser(context.Background(), "u1"), connectors.ErrTransient))

	auth.listErr = nil
	e.resyncAll(context.Background())
	assert.Equal(t, []string{"u1", "u1"}, auth.listed)
}
