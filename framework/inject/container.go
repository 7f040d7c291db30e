package inject

import (
	"reflect"
	"strconv"

	"github.com/km-arc/go-actions/framework/container"
)

// WrongTypeError is returned by Resolve when the bound value is not a T.
type WrongTypeError struct {
	Key  string
	Want reflect.Type
	Got  reflect.Type
}

// Error implements the error interface.
func (e *WrongTypeError) Error() string {
	got := "<nil>"
	if e.Got != nil {
		got = e.Got.String()
	}
	// Example: inject: "greet" resolved to int, want func(string) string
	return "inject: " + strconv.Quote(e.Key) + " resolved to " + got + ", want " + e.Want.String()
}

// Provide binds a transient factory under the token's key.
func Provide[T any](c *container.Container, tok Token[T], factory func(c *container.Container) T) {
	c.Bind(tok.Key(), func(c *container.Container) any { return factory(c) })
}

// ProvideSingleton binds a factory whose result is cached.
func ProvideSingleton[T any](c *container.Container, tok Token[T], factory func(c *container.Container) T) {
	c.Singleton(tok.Key(), func(c *container.Container) any { return factory(c) })
}

// ProvideValue binds a pre-built value under the token's key.
func ProvideValue[T any](c *container.Container, tok Token[T], v T) {
	c.Instance(tok.Key(), v)
}

// Resolve resolves the token from c. An unbound key yields the container's
// *container.NotBoundError.
func Resolve[T any](c *container.Container, tok Token[T]) (T, error) {
	var zero T
	raw, err := c.Get(tok.Key())
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, &WrongTypeError{Key: tok.Key(), Want: tok.Type(), Got: reflect.TypeOf(raw)}
	}
	return v, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c *container.Container, tok Token[T]) T {
	v, err := Resolve(c, tok)
	if err != nil {
		panic(err)
	}
	return v
}
