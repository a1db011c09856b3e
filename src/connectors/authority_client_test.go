package connectors

// Test index:
//  1. TestIsRetryableResp verifies retry decisions per method, status code and error.
//  2. TestExecuteNowSuccess checks the request wiring and trade decoding.
//  3. TestExecuteNowRejectedBody surfaces rejected=true bodies as RejectedError.
//  4. TestExecuteNowClientErrorIsRejected maps a 4xx response to RejectedError.
//  5. TestExecuteNowServerErrorIsTransientWithoutRetry confirms POST is attempted once.
//  6. TestTransportErrorIsTransient covers an unreachable authority.
//  7. TestEvaluateNullBody returns a nil response for a null body.
//  8. TestEvaluateFired decodes fired orders.
//  9. TestListGttRetriesOnUnavailable retries GET after a 503 and parses expiry dates.
// 10. TestCancelGtt checks the DELETE wiring and default status.
// 11. TestCloseAndAdd checks trade payloads.
// 12. TestGetRejectMsg covers known and unknown codes.

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/src/model"
)

func newTestClient(baseURL string) *AuthorityClient {
	return NewAuthorityClient(Config{
		AuthorityBaseURL: baseURL,
		AuthorityToken:   "test-token",
		RequestTimeout:   time.Second,
		RetryCount:       2,
		RetryWait:        time.Millisecond,
		RetryMaxWait:     5 * time.Millisecond,
	})
}

type assertError struct{}

func (assertError) Error() string { return "err" }

func fakeResponse(method string, status int) *resty.Response {
	return &resty.Response{
		Request:     &resty.Request{Method: method},
		RawResponse: &http.Response{StatusCode: status},
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestIsRetryableResp(t *testing.T) {
	cases := []struct {
		name string
		resp *resty.Response
		err  error
		want bool
	}{
		{name: "get error present", resp: fakeResponse(http.MethodGet, 0), err: assertError{}, want: true},
		{name: "get server error", resp: fakeResponse(http.MethodGet, 500), want: true},
		{name: "get too many requests", resp: fakeResponse(http.MethodGet, 429), want: true},
		{name: "delete timeout", resp: fakeResponse(http.MethodDelete, 408), want: true},
		{name: "get ok", resp: fakeResponse(http.MethodGet, 200), want: false},
		{name: "get not found", resp: fakeResponse(http.MethodGet, 404), want: false},
		{name: "post server error", resp: fakeResponse(http.MethodPost, 503), want: false},
		{name: "post error present", resp: fakeResponse(http.MethodPost, 0), err: assertError{}, want: false},
		{name: "nil resp", err: assertError{}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := isRetryableResp(tc.resp, tc.err)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestExecuteNowSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders/executeNow", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		body := decodeBody(t, r)
		assert.Equal(t, "u1", body["userId"])
		assert.Equal(t, "c1", body["challengeId"])
		assert.Equal(t, "o1", body["orderId"])
		assert.Equal(t, 101.5, body["ltp"])

		_, _ = w.Write([]byte(`{"success":true,"trade":{"id":"t1","orderId":"o1","entryPrice":101.5,"quantity":3}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL + "/api")
	resp, err := client.ExecuteNow(context.Background(), ExecuteNowRequest{
		UserID:      "u1",
		ChallengeID: "c1",
		OrderID:     "o1",
		LTP:         decimal.NewNullDecimal(decimal.RequireFromString("101.5")),
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Trade)
	assert.Equal(t, "t1", resp.Trade.ID)
	assert.Equal(t, int64(3), resp.Trade.Quantity)
	assert.True(t, resp.Trade.EntryPrice.Equal(decimal.RequireFromString("101.5")))
}

func TestExecuteNowRejectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"rejected":true,"code":"RISK_LIMIT_EXCEEDED","reason":"max exposure"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.ExecuteNow(context.Background(), ExecuteNowRequest{UserID: "u1", ChallengeID: "c1", OrderID: "o1"})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.True(t, errors.Is(err, ErrRejected))
	require.False(t, errors.Is(err, ErrTransient))

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "RISK_LIMIT_EXCEEDED", rej.Code)
	assert.Equal(t, "max exposure", rej.Reason)
}

func TestExecuteNowClientErrorIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"code":"PAYMENT_REQUIRED"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ExecuteNow(context.Background(), ExecuteNowRequest{UserID: "u1", ChallengeID: "c1", OrderID: "o1"})

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, http.StatusPaymentRequired, rej.Status)
	assert.Equal(t, "PAYMENT_REQUIRED", rej.Code)
	assert.Contains(t, rej.Error(), "challenge fee not paid")
}

func TestExecuteNowServerErrorIsTransientWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ExecuteNow(context.Background(), ExecuteNowRequest{UserID: "u1", ChallengeID: "c1", OrderID: "o1"})
	require.True(t, errors.Is(err, ErrTransient))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(url)
	_, err := client.Evaluate(context.Background(), EvaluateRequest{UserID: "u1", ChallengeID: "c1", TokenOrSymbol: "256265"})
	require.True(t, errors.Is(err, ErrTransient))
}

func TestEvaluateNullBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/evaluate", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "256265", body["tokenOrSymbol"])
		assert.Equal(t, 100.0, body["ltp"])
		assert.Nil(t, body["bid"])
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Evaluate(context.Background(), EvaluateRequest{
		UserID:        "u1",
		ChallengeID:   "c1",
		TokenOrSymbol: "256265",
		LTP:           decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.Nil(t, resp)
}

func TestEvaluateFired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fired":[{"orderId":"o1","tradeId":"t1","price":99.5},{"orderId":"o2"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Evaluate(context.Background(), EvaluateRequest{UserID: "u1", ChallengeID: "c1", TokenOrSymbol: "INFY", LTP: decimal.NewFromInt(99)})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Len(t, resp.Fired, 2)
	assert.Equal(t, "o1", resp.Fired[0].OrderID)
	assert.True(t, resp.Fired[0].Price.Valid)
	assert.False(t, resp.Fired[1].Price.Valid)
}

func TestListGttRetriesOnUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/gtt-orders/u1", r.URL.Path)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[
			{"id":"g1","userId":"u1","challengeId":"c1","symbol":"INFY","side":"SELL","quantity":5,
			 "triggerType":"OCO","targetTriggerPrice":120,"stoplossTriggerPrice":90,"expiry":"2030-01-31","status":"ACTIVE"},
			{"id":"g2","userId":"u1","challengeId":"c1","symbol":"TCS","side":"BUY","quantity":1,
			 "triggerPrice":"50","status":"TRIGGERED"}
		]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	orders, err := client.ListGtt(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, orders, 2)

	assert.Equal(t, model.TriggerOCO, orders[0].TriggerType)
	assert.Equal(t, model.RestingGtt, orders[0].Kind)
	assert.Equal(t, time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC), orders[0].Expiry)
	assert.True(t, orders[0].TargetTriggerPrice.Decimal.Equal(decimal.NewFromInt(120)))

	assert.Equal(t, model.TriggerSingle, orders[1].TriggerType)
	assert.Equal(t, model.GttStatusTriggered, orders[1].Status)
	assert.True(t, orders[1].Expiry.IsZero())
}

func TestCancelGtt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/gtt-orders/g1", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.CancelGtt(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, model.GttStatusCancelled, resp.Status)

	_, err = client.CancelGtt(context.Background(), "")
	require.Error(t, err)
}

func TestCloseAndAdd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		switch r.URL.Path {
		case "/close":
			assert.Equal(t, "t1", body["tradeId"])
			assert.Equal(t, 101.37, body["exitPrice"])
		case "/add":
			assert.Equal(t, 2.0, body["addQuantity"])
			assert.Equal(t, 99.5, body["addPrice"])
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"trade":{"id":"t1","entryPrice":100}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	closed, err := client.Close(context.Background(), CloseRequest{
		UserID: "u1", ChallengeID: "c1", TradeID: "t1",
		ExitPrice: decimal.RequireFromString("101.37"),
	})
	require.NoError(t, err)
	assert.True(t, closed.Success)

	added, err := client.Add(context.Background(), AddRequest{
		UserID: "u1", ChallengeID: "c1", TradeID: "t1",
		AddQuantity: decimal.NewFromInt(2),
		AddPrice:    decimal.RequireFromString("99.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", added.Trade.ID)
}

func TestGetRejectMsg(t *testing.T) {
	assert.Equal(t, "not enough virtual balance", GetRejectMsg("INSUFFICIENT_FUNDS"))
	assert.Equal(t, "UNKNOWN_REJECT_FOO", GetRejectMsg("FOO"))
}
