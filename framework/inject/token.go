package inject

import (
	"fmt"
	"reflect"
)

// Token identifies a dependency by a unique string key. T is the type of the
// value registered under the key; it never travels with the key.
//
//	var GreetToken = inject.NewToken[func(context.Context, string) (string, error)]("greet")
type Token[T any] struct {
	key string
}

// NewToken creates a token without consulting a Registry. Use it for
// well-known tokens such as the dispatcher; use Declare for action tokens.
func NewToken[T any](key string) Token[T] {
	return Token[T]{key: key}
}

// Key returns the token's string key.
func (t Token[T]) Key() string { return t.key }

// Type returns the value type carried by the token.
func (t Token[T]) Type() reflect.Type { return TypeOf[T]() }

// String returns e.g. Token[func(string) string](greet).
func (t Token[T]) String() string {
	return fmt.Sprintf("Token[%s](%s)", t.Type(), t.key)
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
