package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/src/connectors"
	"tradesim/src/dispatcher"
	"tradesim/src/gtt"
	"tradesim/src/model"
)

type sinkStub struct {
	mu    sync.Mutex
	ticks []model.Tick
}

func (s *sinkStub) Dispatch(t model.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, t)
	return nil
}

// newAuthority fakes the execution authority: immediate orders are never
// filled, GTTs get a remote id and cancels always succeed.
func newAuthority(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/orders/executeNow":
			_, _ = w.Write([]byte(`{"success":false}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/gtt-orders":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			body["id"] = "remote-1"
			_ = json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/gtt-orders/"):
			_, _ = w.Write([]byte(`{"status":"CANCELLED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) (http.Handler, *gtt.Manager, *sinkStub) {
	authority := newAuthority(t)
	client := connectors.NewAuthorityClient(connectors.Config{
		AuthorityBaseURL: authority.URL + "/api",
		RequestTimeout:   time.Second,
	})
	manager := gtt.NewManager()
	tick := decimal.RequireFromString("0.05")
	sink := &sinkStub{}

	return NewRouter(Deps{
		Dispatcher: dispatcher.NewDispatcher(client, manager, tick),
		Manager:    manager,
		Ticks:      sink,
		TickSize:   tick,
	}), manager, sink
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestRouterEndToEnd(t *testing.T) {
	h, manager, sink := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/healthcheck", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	// unfilled limit order is parked as pending
	rr = do(t, h, http.MethodPost, "/orders",
		`{"userId":"u1","challengeId":"c1","symbol":"INFY","side":"BUY","type":"LIMIT","price":1490,"quantity":1,"ltp":1500}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Len(t, manager.List("u1"), 1)
	assert.Equal(t, model.RestingLimit, manager.List("u1")[0].Kind)

	expiry := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	rr = do(t, h, http.MethodPost, "/gtt-orders",
		`{"userId":"u1","challengeId":"c1","symbol":"INFY","side":"SELL","quantity":1,"triggerType":"OCO",
		  "targetTriggerPrice":1600,"stoplossTriggerPrice":1400,"expiry":"`+expiry+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	g, err := manager.Get("remote-1")
	require.NoError(t, err)
	assert.Equal(t, model.TriggerOCO, g.TriggerType)

	rr = do(t, h, http.MethodGet, "/gtt-orders/u1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []model.GttOrder
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Len(t, listed, 2)

	rr = do(t, h, http.MethodDelete, "/gtt-orders/remote-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	g, err = manager.Get("remote-1")
	require.NoError(t, err)
	assert.Equal(t, model.GttStatusCancelled, g.Status)

	rr = do(t, h, http.MethodPost, "/ticks", `{"tradingsymbol":"INFY","ltp":1500}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Len(t, sink.ticks, 1)

	rr = do(t, h, http.MethodGet, "/gtt-orders/remote-1/events", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/trades/t1/close", `{"userId":"u1","challengeId":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, &Config{Port: "0", ShutdownTimeout: time.Second}, http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
