package bridge

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/km-arc/go-actions/framework/container"
	"github.com/km-arc/go-actions/framework/inject"
)

// Dispatcher is the single remote entry point: it resolves key and invokes
// whatever is bound there with args.
type Dispatcher func(ctx context.Context, key string, args ...any) (any, error)

// DispatcherToken is the well-known token proxies depend on.
var DispatcherToken = inject.NewToken[Dispatcher]("bridge.dispatcher")

type dispatcherOptions struct {
	registry *inject.Registry
	log      *zap.Logger
}

// DispatcherOption configures NewDispatcher.
type DispatcherOption func(*dispatcherOptions)

// WithRegistry limits dispatch to keys declared in reg. Without a registry
// any key bound in the container can be dispatched.
func WithRegistry(reg *inject.Registry) DispatcherOption {
	return func(o *dispatcherOptions) { o.registry = reg }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(log *zap.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// NewDispatcher builds a dispatcher over the server container c.
//
// Each call resolves key afresh, checks that the bound value is a func,
// binds args to its parameters and returns whatever it returns. Nothing is
// cached, so rebinding a key in c takes effect on the next call. If the
// target's first parameter is a context.Context it receives the call's
// context marked Server.
//
// NewDispatcher marks c Server under SideKey unless c is already marked, so
// proxies registered in c refuse to dispatch.
func NewDispatcher(c *container.Container, opts ...DispatcherOption) Dispatcher {
	if !c.Bound(SideKey) {
		c.Instance(SideKey, Server)
	}
	o := dispatcherOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.Named("dispatcher")

	return func(ctx context.Context, key string, args ...any) (any, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		if o.registry != nil && !o.registry.Has(key) {
			log.Warn("undeclared token", zap.String("key", key))
			return nil, &TokenNotFoundError{Key: key}
		}

		target, err := c.Get(key)
		if err != nil {
			log.Warn("unbound token", zap.String("key", key), zap.Error(err))
			return nil, &TokenNotFoundError{Key: key, Err: err}
		}

		fn := reflect.ValueOf(target)
		if !fn.IsValid() {
			return nil, &InvalidTargetError{Key: key, Reason: "nil is not a func"}
		}
		sig, err := signatureOf(fn.Type())
		if err != nil {
			return nil, &InvalidTargetError{Key: key, Reason: err.Error()}
		}
		if fn.IsNil() {
			return nil, &InvalidTargetError{Key: key, Reason: fmt.Sprintf("nil %s", fn.Type())}
		}

		in, err := sig.bindArgs(key, args)
		if err != nil {
			return nil, err
		}
		if sig.takesCtx {
			in = append([]reflect.Value{reflect.ValueOf(WithExecutionContext(ctx, Server))}, in...)
		}

		log.Debug("dispatch", zap.String("key", key), zap.Int("args", len(args)))
		return sig.outcome(fn.Call(in))
	}
}
