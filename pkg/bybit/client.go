// Package bybit is a Bybit V5 REST + WS client: a Config struct, a plain
// *http.Client with a fixed timeout, and a doSigned request path shared
// by every signed endpoint.
package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/macd3/futures-engine/pkg/ratelimit"
)

// Config holds Bybit V5 credentials and connection settings, taken from
// pkg/config.Config's BYBIT_* fields.
type Config struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	Category    string // "linear" for USDT perpetuals
	RecvWindow  int64  // ms
}

// Client is a Bybit V5 REST client.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
}

// NewClient builds a Client. limiter may be nil in tests.
func NewClient(cfg Config, limiter *ratelimit.Limiter) *Client {
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	if cfg.RESTBaseURL == "" {
		cfg.RESTBaseURL = "https://api.bybit.com"
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
	}
}

// apiError is Bybit's {retCode, retMsg} envelope, present on every response.
type apiError struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

func (e apiError) asError(method, endpoint string) error {
	if e.RetCode == 0 {
		return nil
	}
	return &Error{Method: method, Endpoint: endpoint, RetCode: e.RetCode, RetMsg: e.RetMsg}
}

// Error wraps a non-zero Bybit retCode, carrying enough for retry
// classification (retCode 10006/10018 are retryable).
type Error struct {
	Method   string
	Endpoint string
	RetCode  int
	RetMsg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bybit: %s %s retCode=%d retMsg=%q", e.Method, e.Endpoint, e.RetCode, e.RetMsg)
}

// Retryable reports whether the error is one of the transient codes
// (408/429/5xx are handled at the transport layer; 10006/10018 here).
func (e *Error) Retryable() bool {
	return e.RetCode == 10006 || e.RetCode == 10018
}

// RateLimited reports whether the error is Bybit's rate-limit retCode.
func (e *Error) RateLimited() bool {
	return e.RetCode == 10006
}

// sign computes the Bybit V5 HMAC-SHA256 signature over
// timestamp+apiKey+recvWindow+queryOrBody.
func (c *Client) sign(timestamp, queryOrBody string) string {
	payload := timestamp + c.cfg.APIKey + strconv.FormatInt(c.cfg.RecvWindow, 10) + queryOrBody
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func nowMs() int64 { return time.Now().UnixMilli() }

// doSigned issues a signed GET (params in query) or POST (params as JSON
// body) request and returns the raw "result" field.
func (c *Client) doSigned(ctx context.Context, group ratelimit.Group, symbol, method, path string, params map[string]any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Allow(ctx, group, symbol); err != nil {
			return nil, fmt.Errorf("bybit: rate limit: %w", err)
		}
	}

	ts := strconv.FormatInt(nowMs(), 10)
	endpoint := c.cfg.RESTBaseURL + path

	var req *http.Request
	var err error
	var signPayload string

	switch method {
	case http.MethodGet, http.MethodDelete:
		q := toQuery(params)
		signPayload = q
		full := endpoint
		if q != "" {
			full += "?" + q
		}
		req, err = http.NewRequestWithContext(ctx, method, full, nil)
	default:
		body, merr := json.Marshal(params)
		if merr != nil {
			return nil, fmt.Errorf("bybit: marshal body: %w", merr)
		}
		signPayload = string(body)
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(signPayload))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, err
	}

	sig := c.sign(ts, signPayload)
	req.Header.Set("X-BAPI-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-SIGN", sig)
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.FormatInt(c.cfg.RecvWindow, 10))

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bybit: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)

	if c.limiter != nil {
		c.limiter.ApplyHeaders(group,
			strconv.Itoa(res.StatusCode),
			res.Header.Get("X-Bapi-Limit-Status"),
			res.Header.Get("X-Bapi-Limit"),
			res.Header.Get("X-Bapi-Limit-Reset-Timestamp"),
			res.Header.Get("Retry-After"),
		)
	}

	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusRequestTimeout {
		if c.limiter != nil {
			c.limiter.RecordFailure(group, symbol)
		}
		return nil, &Error{Method: method, Endpoint: path, RetCode: res.StatusCode, RetMsg: string(body)}
	}

	var envelope struct {
		apiError
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("bybit: decode response for %s: %w", path, err)
	}
	if err := envelope.apiError.asError(method, path); err != nil {
		if e, ok := err.(*Error); ok && e.Retryable() && c.limiter != nil {
			c.limiter.RecordFailure(group, symbol)
		}
		return nil, err
	}
	return envelope.Result, nil
}

func toQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v := url.Values{}
	for _, k := range keys {
		v.Set(k, fmt.Sprintf("%v", params[k]))
	}
	return v.Encode()
}
