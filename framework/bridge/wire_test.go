package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-actions/framework/bridge"
	"github.com/km-arc/go-actions/framework/container"
)

func TestNewCall_EncodesArgs(t *testing.T) {
	t.Parallel()

	call, err := bridge.NewCall("greet", []any{"Ann", 3, nil})
	require.NoError(t, err)
	assert.Equal(t, "greet", call.Key)
	require.Len(t, call.Args, 3)
	assert.JSONEq(t, `"Ann"`, string(call.Args[0]))
	assert.JSONEq(t, `3`, string(call.Args[1]))
	assert.JSONEq(t, `null`, string(call.Args[2]))
}

func TestNewCall_UnencodableArg(t *testing.T) {
	t.Parallel()

	_, err := bridge.NewCall("greet", []any{"Ann", math.Inf(1)})
	assert.ErrorIs(t, err, bridge.ErrInvalidArgument)

	var argErr *bridge.ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, 1, argErr.Index)
}

func TestServeCall_DecodesArgsAndEncodesResult(t *testing.T) {
	t.Parallel()

	c := container.New()
	c.Instance("greet", func(ctx context.Context, name string) (string, error) {
		if bridge.ExecutionContextFrom(ctx) != bridge.Server {
			return "", errors.New("not marked")
		}
		return "Hello, " + name, nil
	})

	call, err := bridge.NewCall("greet", []any{"Ann"})
	require.NoError(t, err)

	res, err := bridge.ServeCall(context.Background(), bridge.NewDispatcher(c), call)
	require.NoError(t, err)
	assert.JSONEq(t, `"Hello, Ann"`, string(res.Value))
}

func TestServeCall_UnencodableResult(t *testing.T) {
	t.Parallel()

	c := container.New()
	c.Instance("stream", func() chan int { return make(chan int) })

	_, err := bridge.ServeCall(context.Background(), bridge.NewDispatcher(c), bridge.Call{Key: "stream"})
	assert.ErrorIs(t, err, bridge.ErrBadResult)
}

func TestServeCall_NoValueResult(t *testing.T) {
	t.Parallel()

	c := container.New()
	c.Instance("ping", func() error { return nil })

	res, err := bridge.ServeCall(context.Background(), bridge.NewDispatcher(c), bridge.Call{Key: "ping"})
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(res.Value))
}

func TestFault_RoundTripKeepsKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"invalid target", &bridge.InvalidTargetError{Key: "port", Reason: "int is not a func"}, bridge.ErrInvalidTarget},
		{"misused", &bridge.MisusedProxyError{Key: "greet", Context: bridge.Server}, bridge.ErrMisusedProxy},
		{"not found", &bridge.TokenNotFoundError{Key: "missing"}, bridge.ErrTokenNotFound},
		{"argument", &bridge.ArgumentError{Key: "greet", Index: 0, Reason: "cannot use int as string"}, bridge.ErrInvalidArgument},
		{"arity", &bridge.ArgumentError{Key: "greet", Index: -1, Reason: "expected 1 argument(s), got 2"}, bridge.ErrInvalidArgument},
		{"result", &bridge.ResultError{Key: "stream", Reason: "unsupported type"}, bridge.ErrBadResult},
		{"plain", errors.New("out of stock"), bridge.ErrRemote},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			raw, err := json.Marshal(bridge.FaultOf("greet", tc.err))
			require.NoError(t, err)

			var f bridge.Fault
			require.NoError(t, json.Unmarshal(raw, &f))

			rebuilt := f.Err()
			assert.ErrorIs(t, rebuilt, tc.sentinel)
			if !errors.Is(tc.sentinel, bridge.ErrRemote) {
				assert.Equal(t, tc.err.Error(), rebuilt.Error())
			}
		})
	}
}

func TestFault_PlainErrorBecomesRemote(t *testing.T) {
	t.Parallel()

	f := bridge.FaultOf("checkout", errors.New("out of stock"))
	assert.Equal(t, bridge.FaultRemote, f.Kind)
	assert.Equal(t, "checkout", f.Key)
	assert.EqualError(t, f.Err(), `bridge: "checkout" failed: out of stock`)
}
