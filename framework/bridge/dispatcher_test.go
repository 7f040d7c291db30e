package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-actions/framework/bridge"
	"github.com/km-arc/go-actions/framework/container"
	"github.com/km-arc/go-actions/framework/inject"
)

func newServer(t *testing.T) *container.Container {
	t.Helper()
	c := container.New()
	c.Instance("greet", func(name string) string { return "Hello, " + name })
	c.Instance("farewell", func(name string) string { return "Bye, " + name })
	c.Instance("port", 8000)
	return c
}

//
// -----------------------------------------------------------------------------
// Pass-through
// -----------------------------------------------------------------------------

func TestDispatch_ReturnsWhatTheImplementationReturns(t *testing.T) {
	t.Parallel()

	dispatch := bridge.NewDispatcher(newServer(t))

	got, err := dispatch(context.Background(), "greet", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ann", got)
}

func TestDispatch_KeysNeverCrossResolve(t *testing.T) {
	t.Parallel()

	dispatch := bridge.NewDispatcher(newServer(t))

	a, err := dispatch(context.Background(), "greet", "Ann")
	require.NoError(t, err)
	b, err := dispatch(context.Background(), "farewell", "Ann")
	require.NoError(t, err)

	assert.Equal(t, "Hello, Ann", a)
	assert.Equal(t, "Bye, Ann", b)
}

func TestDispatch_PassesTargetErrorThroughUnchanged(t *testing.T) {
	t.Parallel()

	boom := errors.New("out of stock")
	c := container.New()
	c.Instance("checkout", func(sku string) (int, error) { return 0, boom })

	_, err := bridge.NewDispatcher(c)(context.Background(), "checkout", "sku-1")
	assert.Same(t, boom, err)
}

func TestDispatch_ResultShapes(t *testing.T) {
	t.Parallel()

	c := container.New()
	var ran bool
	c.Instance("none", func() { ran = true })
	c.Instance("errOnly", func() error { return nil })
	c.Instance("pair", func(a, b int) (int, error) { return a + b, nil })
	c.Instance("variadic", func(sep string, parts ...string) string {
		out := ""
		for i, p := range parts {
			if i > 0 {
				out += sep
			}
			out += p
		}
		return out
	})
	dispatch := bridge.NewDispatcher(c)
	ctx := context.Background()

	v, err := dispatch(ctx, "none")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, ran)

	v, err = dispatch(ctx, "errOnly")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = dispatch(ctx, "pair", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = dispatch(ctx, "variadic", "-", "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", v)

	v, err = dispatch(ctx, "variadic", "-")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestDispatch_ContextParameterReceivesServerMarkedContext(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}
	c := container.New()
	c.Instance("whoami", func(ctx context.Context, name string) (string, error) {
		return fmt.Sprintf("%s/%s/%v", name, bridge.ExecutionContextFrom(ctx), ctx.Value(ctxKey{})), nil
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "trace-1")
	got, err := bridge.NewDispatcher(c)(ctx, "whoami", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann/server/trace-1", got)
}

func TestDispatch_NilContextIsAllowed(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // nil context is part of the contract under test
	got, err := bridge.NewDispatcher(newServer(t))(nil, "greet", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ann", got)
}

func TestDispatch_NoCachingSeesRebinding(t *testing.T) {
	t.Parallel()

	c := newServer(t)
	dispatch := bridge.NewDispatcher(c)

	c.Instance("greet", func(name string) string { return "Hi, " + name })
	got, err := dispatch(context.Background(), "greet", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Hi, Ann", got)
}

//
// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

func TestDispatch_InvalidTarget(t *testing.T) {
	t.Parallel()

	c := newServer(t)
	var nilFn func()
	c.Instance("nilFn", nilFn)
	c.Instance("nothing", nil)
	c.Instance("threeResults", func() (int, int, error) { return 0, 0, nil })
	c.Instance("badSecond", func() (int, int) { return 0, 0 })
	dispatch := bridge.NewDispatcher(c)

	for _, key := range []string{"port", "nilFn", "nothing", "threeResults", "badSecond"} {
		_, err := dispatch(context.Background(), key)
		require.Error(t, err, key)
		assert.ErrorIs(t, err, bridge.ErrInvalidTarget, key)

		var invalid *bridge.InvalidTargetError
		require.True(t, errors.As(err, &invalid), key)
		assert.Equal(t, key, invalid.Key)
	}

	_, err := dispatch(context.Background(), "port")
	assert.EqualError(t, err, `bridge: target "port" is not callable: int is not a func`)
}

func TestDispatch_UnboundKey(t *testing.T) {
	t.Parallel()

	_, err := bridge.NewDispatcher(newServer(t))(context.Background(), "missing")
	assert.ErrorIs(t, err, bridge.ErrTokenNotFound)
	assert.ErrorIs(t, err, container.ErrNotBound)
	assert.EqualError(t, err, `bridge: token "missing" not found`)
}

func TestDispatch_RegistryRestrictsKeys(t *testing.T) {
	t.Parallel()

	reg := inject.NewRegistry()
	inject.MustDeclare[func(string) string](reg, "greet")
	dispatch := bridge.NewDispatcher(newServer(t), bridge.WithRegistry(reg))

	got, err := dispatch(context.Background(), "greet", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ann", got)

	// bound but not declared
	_, err = dispatch(context.Background(), "farewell", "Ann")
	assert.ErrorIs(t, err, bridge.ErrTokenNotFound)
	assert.NotErrorIs(t, err, container.ErrNotBound)
}

func TestDispatch_ArgumentErrors(t *testing.T) {
	t.Parallel()

	c := newServer(t)
	c.Instance("add", func(a, b int8) int8 { return a + b })
	c.Instance("join", func(sep string, parts ...string) string { return sep })
	dispatch := bridge.NewDispatcher(c)
	ctx := context.Background()

	cases := []struct {
		name  string
		key   string
		args  []any
		index int
	}{
		{"too many", "greet", []any{"Ann", "Bob"}, -1},
		{"too few", "greet", nil, -1},
		{"variadic too few", "join", nil, -1},
		{"wrong type", "greet", []any{42}, 0},
		{"nil for string", "greet", []any{nil}, 0},
		{"overflow", "add", []any{1, 300}, 1},
		{"fractional", "add", []any{1.5, 1}, 0},
		{"bad json", "greet", []any{json.RawMessage(`{}`)}, 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := dispatch(ctx, tc.key, tc.args...)
			assert.ErrorIs(t, err, bridge.ErrInvalidArgument)

			var argErr *bridge.ArgumentError
			require.True(t, errors.As(err, &argErr))
			assert.Equal(t, tc.index, argErr.Index)
			assert.Equal(t, tc.key, argErr.Key)
		})
	}

	_, err := dispatch(ctx, "greet", "Ann", "Bob")
	assert.EqualError(t, err, `bridge: "greet": expected 1 argument(s), got 2`)
	_, err = dispatch(ctx, "greet", 42)
	assert.EqualError(t, err, `bridge: "greet" argument 0: cannot use int as string`)
}

func TestDispatch_ArgumentCoercion(t *testing.T) {
	t.Parallel()

	type order struct {
		SKU string `json:"sku"`
		Qty int    `json:"qty"`
	}
	c := container.New()
	c.Instance("place", func(o order, notes []string, meta any) string {
		return fmt.Sprintf("%s x%d notes=%d meta=%v", o.SKU, o.Qty, len(notes), meta)
	})
	c.Instance("scale", func(f float64) float64 { return f * 2 })
	dispatch := bridge.NewDispatcher(c)
	ctx := context.Background()

	got, err := dispatch(ctx, "place", json.RawMessage(`{"sku":"a1","qty":3}`), nil, json.RawMessage(`"x"`))
	require.NoError(t, err)
	assert.Equal(t, "a1 x3 notes=0 meta=x", got)

	got, err = dispatch(ctx, "scale", 21)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
}

func TestDispatch_NumericSignIsPreserved(t *testing.T) {
	t.Parallel()

	c := container.New()
	c.Instance("uint", func(n uint) uint { return n })
	c.Instance("uint8", func(n uint8) uint8 { return n })
	c.Instance("int8", func(n int8) int8 { return n })
	c.Instance("int64", func(n int64) int64 { return n })
	dispatch := bridge.NewDispatcher(c)
	ctx := context.Background()

	rejected := []struct {
		name string
		key  string
		arg  any
	}{
		{"negative int into uint", "uint", -1},
		{"negative int8 into uint8", "uint8", int8(-1)},
		{"negative float into uint", "uint", -2.0},
		{"uint8 above int8 max", "int8", uint8(200)},
		{"uint64 above int64 max", "int64", uint64(math.MaxUint64)},
	}
	for _, tc := range rejected {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := dispatch(ctx, tc.key, tc.arg)
			assert.ErrorIs(t, err, bridge.ErrInvalidArgument)

			var argErr *bridge.ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, 0, argErr.Index)
		})
	}

	got, err := dispatch(ctx, "uint", 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), got)

	got, err = dispatch(ctx, "int8", uint8(127))
	require.NoError(t, err)
	assert.Equal(t, int8(127), got)

	got, err = dispatch(ctx, "int64", -5)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got)
}

//
// -----------------------------------------------------------------------------
// Concurrency
// -----------------------------------------------------------------------------

func TestDispatch_ConcurrentCallsDoNotInterfere(t *testing.T) {
	t.Parallel()

	dispatch := bridge.NewDispatcher(newServer(t))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user-%d", i)
			key := "greet"
			want := "Hello, " + name
			if i%2 == 1 {
				key, want = "farewell", "Bye, "+name
			}
			got, err := dispatch(context.Background(), key, name)
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- fmt.Errorf("got %v want %v", got, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
