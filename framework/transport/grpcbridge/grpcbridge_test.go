package grpcbridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/km-arc/go-actions/framework/bridge"
	"github.com/km-arc/go-actions/framework/container"
	"github.com/km-arc/go-actions/framework/inject"
	"github.com/km-arc/go-actions/framework/transport/grpcbridge"
)

type greetFn = func(ctx context.Context, name string) (string, error)

var GreetToken = inject.NewToken[greetFn]("greet")

const secret = "0123456789abcdef"

// serve starts a bridge server for the server container on an in-memory
// listener and returns a connection to it.
func serve(t *testing.T, server *container.Container, opts ...grpcbridge.ServerOption) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpcbridge.NewServer(bridge.NewDispatcher(server), opts...)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newServerContainer() *container.Container {
	c := container.New()
	inject.ProvideValue(c, GreetToken, func(_ context.Context, name string) (string, error) {
		if name == "" {
			return "", errors.New("name is required")
		}
		return "Hello, " + name, nil
	})
	c.Instance("port", 8000)
	c.Instance("boom", func() string { panic("kaboom") })
	c.Instance("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})
	return c
}

func clientContainer(conn grpc.ClientConnInterface, opts ...grpcbridge.ClientOption) *container.Container {
	c := container.New()
	inject.ProvideValue(c, bridge.DispatcherToken, grpcbridge.NewClient(conn, opts...).Dispatcher())
	bridge.Proxy(GreetToken).Register(c)
	return c
}

//
// -----------------------------------------------------------------------------
// Round trips
// -----------------------------------------------------------------------------

func TestGreetOverGRPC(t *testing.T) {
	t.Parallel()

	client := clientContainer(serve(t, newServerContainer()))

	got, err := inject.MustResolve(client, GreetToken)(context.Background(), "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ann", got)
}

func TestGreetOverGRPC_ServerContextIsMisuse(t *testing.T) {
	t.Parallel()

	client := clientContainer(serve(t, newServerContainer()))

	ctx := bridge.WithExecutionContext(context.Background(), bridge.Server)
	_, err := inject.MustResolve(client, GreetToken)(ctx, "Ann")
	assert.ErrorIs(t, err, bridge.ErrMisusedProxy)
	assert.Contains(t, err.Error(), `"greet"`)
}

func TestDispatch_ReturnsRawResult(t *testing.T) {
	t.Parallel()

	c := grpcbridge.NewClient(serve(t, newServerContainer()))
	got, err := c.Dispatch(context.Background(), "greet", "Ann")
	require.NoError(t, err)
	assert.JSONEq(t, `"Hello, Ann"`, string(got.(json.RawMessage)))
}

//
// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

func TestErrorsCrossTheWire(t *testing.T) {
	t.Parallel()

	dispatch := grpcbridge.NewClient(serve(t, newServerContainer())).Dispatcher()

	cases := []struct {
		name     string
		key      string
		args     []any
		sentinel error
		message  string
	}{
		{"invalid target", "port", nil, bridge.ErrInvalidTarget, `bridge: target "port" is not callable: int is not a func`},
		{"unbound", "refund", nil, bridge.ErrTokenNotFound, `bridge: token "refund" not found`},
		{"arity", "greet", nil, bridge.ErrInvalidArgument, `bridge: "greet": expected 1 argument(s), got 0`},
		{"action error", "greet", []any{""}, bridge.ErrRemote, `bridge: "greet" failed: name is required`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := dispatch(context.Background(), tc.key, tc.args...)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.EqualError(t, err, tc.message)
		})
	}
}

func TestStatusCodes(t *testing.T) {
	t.Parallel()

	conn := serve(t, newServerContainer())

	cases := map[string]codes.Code{
		"port":   codes.FailedPrecondition,
		"refund": codes.NotFound,
		"greet":  codes.InvalidArgument, // no args
	}
	for key, want := range cases {
		call, err := bridge.NewCall(key, nil)
		require.NoError(t, err)
		payload, err := json.Marshal(call)
		require.NoError(t, err)

		err = conn.Invoke(context.Background(), grpcbridge.DispatchMethod, wrapperspb.Bytes(payload), new(wrapperspb.BytesValue))
		assert.Equal(t, want, status.Code(err), key)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	dispatch := grpcbridge.NewClient(serve(t, newServerContainer(), grpcbridge.WithServerLogger(zap.New(core)))).Dispatcher()

	_, err := dispatch(context.Background(), "boom")
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, 1, logs.FilterMessage("panic in handler").Len())

	// the server keeps serving
	got, err := dispatch(context.Background(), "greet", "Ann")
	require.NoError(t, err)
	assert.JSONEq(t, `"Hello, Ann"`, string(got.(json.RawMessage)))
}

//
// -----------------------------------------------------------------------------
// Transport concerns
// -----------------------------------------------------------------------------

func TestSecret(t *testing.T) {
	t.Parallel()

	conn := serve(t, newServerContainer(), grpcbridge.WithServerSecret(secret))

	ok := clientContainer(conn, grpcbridge.WithSecret(secret))
	got, err := inject.MustResolve(ok, GreetToken)(context.Background(), "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ann", got)

	denied := clientContainer(conn)
	_, err = inject.MustResolve(denied, GreetToken)(context.Background(), "Ann")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	dispatch := grpcbridge.NewClient(serve(t, newServerContainer()), grpcbridge.WithTimeout(50*time.Millisecond)).Dispatcher()

	_, err := dispatch(context.Background(), "slow")
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	conn := serve(t, newServerContainer(), grpcbridge.WithServerSecret(secret))
	hc := healthpb.NewHealthClient(conn)

	for _, svc := range []string{"", grpcbridge.ServiceName} {
		resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err, svc)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus(), svc)
	}
}

func TestDial(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpcbridge.NewServer(bridge.NewDispatcher(newServerContainer()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := grpcbridge.Dial(lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	got, err := c.Dispatch(context.Background(), "greet", "Ann")
	require.NoError(t, err)
	assert.JSONEq(t, `"Hello, Ann"`, string(got.(json.RawMessage)))
}
