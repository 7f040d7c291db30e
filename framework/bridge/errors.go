package bridge

import (
	"errors"
	"strconv"
)

var (
	// ErrInvalidTarget matches *InvalidTargetError.
	ErrInvalidTarget = errors.New("bridge: invalid target")

	// ErrMisusedProxy matches *MisusedProxyError.
	ErrMisusedProxy = errors.New("bridge: misused proxy")

	// ErrTokenNotFound matches *TokenNotFoundError.
	ErrTokenNotFound = errors.New("bridge: token not found")

	// ErrInvalidArgument matches *ArgumentError.
	ErrInvalidArgument = errors.New("bridge: invalid argument")

	// ErrBadResult matches *ResultError.
	ErrBadResult = errors.New("bridge: bad result")

	// ErrRemote matches *RemoteError.
	ErrRemote = errors.New("bridge: remote failure")
)

// InvalidTargetError is returned by a dispatcher when the value bound under
// a key cannot be called.
type InvalidTargetError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *InvalidTargetError) Error() string {
	// Example: bridge: target "greet" is not callable: int is not a func
	return "bridge: target " + strconv.Quote(e.Key) + " is not callable: " + e.Reason
}

// Is reports whether target is ErrInvalidTarget.
func (e *InvalidTargetError) Is(target error) bool { return target == ErrInvalidTarget }

// MisusedProxyError is returned by a proxy invoked outside a client
// execution context. The real dependency should have been used instead.
type MisusedProxyError struct {
	Key     string
	Context ExecutionContext
}

// Error implements the error interface.
func (e *MisusedProxyError) Error() string {
	// Example: bridge: proxy "greet" invoked in server context
	return "bridge: proxy " + strconv.Quote(e.Key) + " invoked in " + e.Context.String() + " context"
}

// Is reports whether target is ErrMisusedProxy.
func (e *MisusedProxyError) Is(target error) bool { return target == ErrMisusedProxy }

// TokenNotFoundError is returned when a key is not declared in the
// dispatcher's registry or not bound in its container.
type TokenNotFoundError struct {
	Key string
	Err error // underlying container error, if any
}

// Error implements the error interface.
func (e *TokenNotFoundError) Error() string {
	return "bridge: token " + strconv.Quote(e.Key) + " not found"
}

// Is reports whether target is ErrTokenNotFound.
func (e *TokenNotFoundError) Is(target error) bool { return target == ErrTokenNotFound }

// Unwrap returns the underlying container error.
func (e *TokenNotFoundError) Unwrap() error { return e.Err }

// ArgumentError is returned when forwarded arguments do not fit the target.
// Index is -1 for arity mismatches.
type ArgumentError struct {
	Key    string
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		// Example: bridge: "greet": expected 1 argument(s), got 2
		return "bridge: " + strconv.Quote(e.Key) + ": " + e.Reason
	}
	// Example: bridge: "greet" argument 0: cannot use int as string
	return "bridge: " + strconv.Quote(e.Key) + " argument " + strconv.Itoa(e.Index) + ": " + e.Reason
}

// Is reports whether target is ErrInvalidArgument.
func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// ResultError is returned when a result cannot be encoded or cannot be
// converted into the proxy's result type.
type ResultError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	return "bridge: " + strconv.Quote(e.Key) + " result: " + e.Reason
}

// Is reports whether target is ErrBadResult.
func (e *ResultError) Is(target error) bool { return target == ErrBadResult }

// RemoteError carries an error returned by the real implementation on the
// other side of a transport.
type RemoteError struct {
	Key     string
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return "bridge: " + strconv.Quote(e.Key) + " failed: " + e.Message
}

// Is reports whether target is ErrRemote.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }
