package bridge

import (
	"context"
	"fmt"
	"reflect"

	"github.com/km-arc/go-actions/framework/container"
	"github.com/km-arc/go-actions/framework/inject"
)

// ProxyTag groups the keys of every proxy registered in a container.
const ProxyTag = "bridge.proxies"

// Descriptor is a container entry for a proxy: the token it stands in for,
// the keys it depends on and the factory that builds it from a dispatcher.
type Descriptor[T any] struct {
	Token   inject.Token[T]
	Needs   []string
	Factory func(dispatch Dispatcher) T

	build func(dispatch Dispatcher, env Environment) T
}

// Register binds the descriptor in c as a transient factory. The dispatcher
// is resolved from c each time the proxy is resolved.
//
// In a container marked Server (see SideOf) the proxy is built to always
// report Server, so calling it fails with *MisusedProxyError and never
// reaches the dispatcher, whatever its signature.
func (d Descriptor[T]) Register(c *container.Container) {
	c.Bind(d.Token.Key(), func(c *container.Container) any {
		dispatch := inject.MustResolve(c, DispatcherToken)
		if d.build != nil && SideOf(c) == Server {
			return d.build(dispatch, Fixed(Server))
		}
		return d.Factory(dispatch)
	})
	c.Tag([]string{d.Token.Key()}, ProxyTag)
}

type proxyOptions struct {
	env Environment
}

// ProxyOption configures Proxy.
type ProxyOption func(*proxyOptions)

// WithEnvironment sets how a proxy decides which side it runs on.
func WithEnvironment(env Environment) ProxyOption {
	return func(o *proxyOptions) {
		if env != nil {
			o.env = env
		}
	}
}

// Proxy returns a descriptor whose factory builds a stand-in for the value
// behind tok. T must be a func type; the stand-in has exactly that type.
//
// Called on the client, the stand-in forwards (tok.Key(), args...) to the
// dispatcher once and converts the result to T's result type. Called on the
// server it fails with *MisusedProxyError without dispatching. When T has a
// trailing error result failures are returned there; otherwise the
// stand-in panics with the error.
//
// Proxy panics if T is not a supported func type.
func Proxy[T any](tok inject.Token[T], opts ...ProxyOption) Descriptor[T] {
	sig, err := signatureOf(tok.Type())
	if err != nil {
		panic(fmt.Sprintf("bridge: cannot proxy %s: %v", tok, err))
	}
	o := proxyOptions{env: DefaultEnvironment}
	for _, opt := range opts {
		opt(&o)
	}
	key := tok.Key()

	build := func(dispatch Dispatcher, env Environment) T {
		fn := reflect.MakeFunc(sig.typ, func(in []reflect.Value) []reflect.Value {
			ctx := context.Background()
			if sig.takesCtx {
				if c, ok := in[0].Interface().(context.Context); ok && c != nil {
					ctx = c
				}
				in = in[1:]
			}

			if ec := env.ExecutionContext(ctx); ec != Client {
				return sig.fail(&MisusedProxyError{Key: key, Context: ec})
			}

			res, err := dispatch(WithExecutionContext(ctx, Client), key, sig.flatten(in)...)
			if err != nil {
				return sig.fail(err)
			}
			return sig.succeed(key, res)
		})
		return fn.Interface().(T)
	}

	return Descriptor[T]{
		Token:   tok,
		Needs:   []string{DispatcherToken.Key()},
		Factory: func(dispatch Dispatcher) T { return build(dispatch, o.env) },
		build:   build,
	}
}
