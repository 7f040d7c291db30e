package inject

import (
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/km-arc/go-actions/framework/validation"
)

// KeyRules restricts keys to characters that are safe in URL paths and gRPC
// metadata.
const KeyRules = "required|max:128|regex:^[A-Za-z0-9_.:/-]+$"

// DuplicateTokenError is returned when a key is declared twice.
type DuplicateTokenError struct {
	Key      string
	Existing reflect.Type
}

// Error implements the error interface.
func (e *DuplicateTokenError) Error() string {
	// Example: inject: token "greet" already declared as func(string) string
	return "inject: token " + strconv.Quote(e.Key) + " already declared as " + e.Existing.String()
}

// InvalidKeyError is returned when a key fails validation.
type InvalidKeyError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *InvalidKeyError) Error() string {
	return "inject: invalid token key " + strconv.Quote(e.Key) + ": " + e.Reason
}

// Registry is the explicit set of token keys shared by a server and its
// clients. Both sides declare the same keys; a key may be declared once.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]reflect.Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]reflect.Type)}
}

// Declare registers key with value type T and returns its token.
func Declare[T any](r *Registry, key string) (Token[T], error) {
	v := validation.Make(map[string]string{"key": key}, validation.Rules{"key": KeyRules})
	if v.Fails() {
		return Token[T]{}, &InvalidKeyError{Key: key, Reason: v.Errors().First("key")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tokens[key]; ok {
		return Token[T]{}, &DuplicateTokenError{Key: key, Existing: existing}
	}
	r.tokens[key] = TypeOf[T]()
	return NewToken[T](key), nil
}

// MustDeclare is like Declare but panics on error. Intended for
// package-level token variables.
func MustDeclare[T any](r *Registry, key string) Token[T] {
	tok, err := Declare[T](r, key)
	if err != nil {
		panic(err)
	}
	return tok
}

// Has reports whether key has been declared.
func (r *Registry) Has(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Lookup returns the value type declared for key.
func (r *Registry) Lookup(key string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[key]
	return t, ok
}

// Keys returns all declared keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.tokens))
	for k := range r.tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
