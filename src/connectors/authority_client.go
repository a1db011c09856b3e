// REST CLIENT FOR THE REMOTE EXECUTION AUTHORITY
// RESTY ONLY + RETRIES FOR IDEMPOTENT METHODS
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/model"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	defaultRequestTimeout = 3 * time.Second
	defaultRetryWait      = 200 * time.Millisecond
	defaultRetryMaxWait   = 2 * time.Second
)

// -----------------------------
// A) CLIENT
// -----------------------------
type AuthorityClient struct {
	baseURL string
	timeout time.Duration
	http    *resty.Client
}

// isRetryableResp retries GET and DELETE on transport errors, 408, 429 and 5xx.
// POST is never retried: the authority may already have acted on it.
func isRetryableResp(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil {
		return false
	}
	switch r.Request.Method {
	case http.MethodGet, http.MethodDelete:
	default:
		return false
	}

	if err != nil {
		return true
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	if code == http.StatusRequestTimeout {
		return true
	}
	return false
}

func NewAuthorityClient(cfg Config) *AuthorityClient {
	baseURL := strings.TrimRight(cfg.AuthorityBaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
		logger.Warnf("No authority base URL provided, using default: %s", baseURL)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}
	maxWait := cfg.RetryMaxWait
	if maxWait <= 0 {
		maxWait = defaultRetryMaxWait
	}
	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(maxWait).
		AddRetryCondition(isRetryableResp).
		SetHeader("Accept", "application/json")
	if cfg.AuthorityToken != "" {
		httpClient.SetAuthToken(cfg.AuthorityToken)
	}

	return &AuthorityClient{
		baseURL: baseURL,
		timeout: timeout,
		http:    httpClient,
	}
}

// classify maps a resty result onto ErrTransient or *RejectedError.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if resp == nil {
		return ErrTransient
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code <= 299:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrTransient, code)
	}

	rej := &RejectedError{Status: code}
	var body errorBody
	if json.Unmarshal(resp.Body(), &body) == nil {
		rej.Code = body.Code
		rej.Reason = firstNonEmpty(body.Reason, body.Message, body.Error)
	}
	if rej.Reason == "" {
		rej.Reason = strings.TrimSpace(string(resp.Body()))
	}
	if rej.Reason == "" {
		rej.Reason = http.StatusText(code)
	}
	return rej
}

func (c *AuthorityClient) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err := classify(resp, err); err != nil {
		logger.WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
		}).WithError(err).Debug("authority request failed")
		return err
	}

	raw := bytes.TrimSpace(resp.Body())
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrTransient, method, path, err)
	}
	return nil
}

// -----------------------------
// B) ORDER METHODS
// -----------------------------

// ExecuteNow asks the authority to fill an order immediately. A body with
// rejected=true is returned as *RejectedError.
func (c *AuthorityClient) ExecuteNow(ctx context.Context, in ExecuteNowRequest) (*ExecuteNowResponse, error) {
	var out ExecuteNowResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders/executeNow", in, &out); err != nil {
		return nil, err
	}
	if out.Rejected {
		return &out, &RejectedError{Status: http.StatusOK, Code: out.Code, Reason: out.Reason}
	}
	return &out, nil
}

// Evaluate lets the authority match a user's pending limit orders against a
// tick. A null body yields a nil response and no error.
func (c *AuthorityClient) Evaluate(ctx context.Context, in EvaluateRequest) (*EvaluateResponse, error) {
	var out *EvaluateResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders/evaluate", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// -----------------------------
// C) TRADE METHODS
// -----------------------------
func (c *AuthorityClient) Close(ctx context.Context, in CloseRequest) (*TradeResponse, error) {
	return c.tradeCall(ctx, "/close", in)
}

func (c *AuthorityClient) Add(ctx context.Context, in AddRequest) (*TradeResponse, error) {
	return c.tradeCall(ctx, "/add", in)
}

func (c *AuthorityClient) tradeCall(ctx context.Context, path string, in interface{}) (*TradeResponse, error) {
	var out TradeResponse
	if err := c.doRequest(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	if out.Rejected {
		return &out, &RejectedError{Status: http.StatusOK, Code: out.Code, Reason: out.Reason}
	}
	return &out, nil
}

// -----------------------------
// D) GTT METHODS
// -----------------------------
func (c *AuthorityClient) ListGtt(ctx context.Context, userID string) ([]model.GttOrder, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	var wire []gttWire
	if err := c.doRequest(ctx, http.MethodGet, "/gtt-orders/"+url.PathEscape(userID), nil, &wire); err != nil {
		return nil, err
	}
	orders := make([]model.GttOrder, 0, len(wire))
	for _, w := range wire {
		orders = append(orders, w.toModel())
	}
	return orders, nil
}

func (c *AuthorityClient) CreateGtt(ctx context.Context, g model.GttOrder) (*model.GttOrder, error) {
	var out gttWire
	if err := c.doRequest(ctx, http.MethodPost, "/gtt-orders", toGttWire(g), &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return &g, nil
	}
	created := out.toModel()
	return &created, nil
}

func (c *AuthorityClient) CancelGtt(ctx context.Context, orderID string) (*CancelGttResponse, error) {
	if orderID == "" {
		return nil, errors.New("orderID is required")
	}
	var out CancelGttResponse
	if err := c.doRequest(ctx, http.MethodDelete, "/gtt-orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		out.Status = model.GttStatusCancelled
	}
	return &out, nil
}

// -----------------------------
// HELPERS
// -----------------------------
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
