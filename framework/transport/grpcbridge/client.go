package grpcbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/km-arc/go-actions/framework/bridge"
)

// Client calls a remote Bridge service.
type Client struct {
	conn    grpc.ClientConnInterface
	closer  io.Closer
	secret  string
	timeout time.Duration
	dial    []grpc.DialOption
	log     *zap.Logger
}

// ClientOption configures Dial and NewClient.
type ClientOption func(*Client)

// WithSecret sends "authorization: Bearer <secret>" metadata with every call.
func WithSecret(secret string) ClientOption {
	return func(c *Client) { c.secret = secret }
}

// WithTimeout bounds each call. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithDialOptions adds options used by Dial. Without any, Dial connects
// with insecure transport credentials.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *Client) { c.dial = append(c.dial, opts...) }
}

// WithLogger sets the client's logger.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient wraps an existing connection. The caller owns conn.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{conn: conn, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("grpc")
	return c
}

// Dial creates a connection to target and a client owning it. Close
// releases the connection.
func Dial(target string, opts ...ClientOption) (*Client, error) {
	c := NewClient(nil, opts...)
	dial := c.dial
	if len(dial) == 0 {
		dial = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, dial...)
	if err != nil {
		return nil, fmt.Errorf("grpcbridge: dial %s: %w", target, err)
	}
	c.conn, c.closer = conn, conn
	return c, nil
}

// Close releases a connection opened by Dial.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Dispatcher returns c as a bridge.Dispatcher for the client container.
func (c *Client) Dispatcher() bridge.Dispatcher { return c.Dispatch }

// Dispatch sends one call and returns the encoded result as json.RawMessage.
// Each call is sent exactly once; failed calls are not retried.
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
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("grpcbridge: encode %q: %w", key, err)
	}

	id := uuid.NewString()
	ctx = metadata.AppendToOutgoingContext(ctx, callIDKey, id)
	if c.secret != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.secret)
	}
	log := c.log.With(zap.String("call_id", id), zap.String("key", key))

	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, DispatchMethod, wrapperspb.Bytes(payload), out); err != nil {
		log.Debug("call failed", zap.Error(err))
		return nil, errorFrom(key, err)
	}

	var res bridge.Result
	if err := json.Unmarshal(out.GetValue(), &res); err != nil {
		return nil, fmt.Errorf("grpcbridge: decode %q response: %w", key, err)
	}
	log.Debug("dispatched")
	return res.Value, nil
}

// errorFrom rebuilds the typed bridge error from a status carrying a Fault.
// Transport-level failures have no Fault and are returned wrapped, so
// status.Code still reports their code.
func errorFrom(key string, err error) error {
	st, ok := status.FromError(err)
	if ok {
		for _, d := range st.Details() {
			s, isString := d.(*wrapperspb.StringValue)
			if !isString {
				continue
			}
			var f bridge.Fault
			if json.Unmarshal([]byte(s.GetValue()), &f) == nil && f.Kind != "" {
				return f.Err()
			}
		}
	}
	return fmt.Errorf("grpcbridge: %q: %w", key, err)
}
