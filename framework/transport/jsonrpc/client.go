package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"

	"github.com/km-arc/go-actions/framework/bridge"
)

// StatusError is returned when the endpoint answers with a non-2xx status,
// which means the request never reached the dispatcher.
type StatusError struct {
	Key        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	// Example: jsonrpc: "greet": unexpected status 401 Unauthorized
	return "jsonrpc: " + strconv.Quote(e.Key) + ": unexpected status " +
		strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

// Client calls a remote Bridge.Dispatch endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	secret   string
	headers  http.Header
	timeout  time.Duration
	log      *zap.Logger
}

// ClientOption configures NewClient.
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSecret sends "Authorization: Bearer <secret>" with every call.
func WithSecret(secret string) ClientOption {
	return func(c *Client) { c.secret = secret }
}

// WithHeader adds a header to every call.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.headers.Add(key, value) }
}

// WithTimeout bounds each call. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client's logger.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient returns a client for the endpoint URL, e.g.
// "http://localhost:8000/_actions".
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
		headers:  make(http.Header),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("jsonrpc")
	return c
}

// Dispatcher returns c as a bridge.Dispatcher for the client container.
func (c *Client) Dispatcher() bridge.Dispatcher { return c.Dispatch }

// Dispatch sends one call and returns the encoded result as json.RawMessage,
// which proxies decode into their result type. Each call is sent exactly
// once; failed calls are not retried.
func (c *Client) Dispatch(ctx context.Context, key string, args ...any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	call, err := bridge.NewCall(key, args)
	if err != nil {
		return nil, err
	}
	body, err := json2.EncodeClientRequest(Method, call)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: encode %q: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
	callID := uuid.NewString()
	req.Header.Set(CallIDHeader, callID)
	log := c.log.With(zap.String("call_id", callID), zap.String("key", key))

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return nil, fmt.Errorf("jsonrpc: %q: %w", key, err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("unexpected status", zap.Int("status", resp.StatusCode))
		return nil, &StatusError{Key: key, StatusCode: resp.StatusCode}
	}

	var res bridge.Result
	if err := json2.DecodeClientResponse(resp.Body, &res); err != nil {
		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			f := faultOf(key, rpcErr)
			log.Debug("remote fault", zap.String("kind", string(f.Kind)))
			return nil, f.Err()
		}
		return nil, fmt.Errorf("jsonrpc: decode %q response: %w", key, err)
	}
	log.Debug("dispatched")
	return res.Value, nil
}

// faultOf recovers the bridge.Fault a server put in an error's Data. Errors
// raised by the RPC layer itself carry none and become remote failures.
func faultOf(key string, e *json2.Error) bridge.Fault {
	var f bridge.Fault
	if raw, err := json.Marshal(e.Data); err == nil {
		if json.Unmarshal(raw, &f) == nil && f.Kind != "" {
			return f
		}
	}
	return bridge.Fault{Kind: bridge.FaultRemote, Key: key, Message: e.Message}
}

// closeBody drains the body so the connection can be reused.
func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
