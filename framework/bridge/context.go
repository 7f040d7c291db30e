package bridge

import (
	"context"
	"fmt"

	"github.com/km-arc/go-actions/framework/container"
)

// ExecutionContext says which side of the client/server boundary code runs on.
type ExecutionContext int

const (
	Unknown ExecutionContext = iota
	Client
	Server
)

func (ec ExecutionContext) String() string {
	switch ec {
	case Client:
		return "client"
	case Server:
		return "server"
	default:
		return "unknown"
	}
}

// ParseExecutionContext is the inverse of String.
func ParseExecutionContext(s string) (ExecutionContext, error) {
	switch s {
	case "client":
		return Client, nil
	case "server":
		return Server, nil
	case "unknown", "":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("bridge: unknown execution context %q", s)
}

type executionContextKey struct{}

// WithExecutionContext marks ctx as running on the given side.
func WithExecutionContext(ctx context.Context, ec ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey{}, ec)
}

// ExecutionContextFrom returns the side ctx was marked with, or Unknown.
func ExecutionContextFrom(ctx context.Context) ExecutionContext {
	if ctx == nil {
		return Unknown
	}
	ec, _ := ctx.Value(executionContextKey{}).(ExecutionContext)
	return ec
}

// Environment decides, per call, which side a proxy is running on.
type Environment interface {
	ExecutionContext(ctx context.Context) ExecutionContext
}

// Fixed is an Environment that always reports the same side.
type Fixed ExecutionContext

// ExecutionContext implements Environment.
func (f Fixed) ExecutionContext(context.Context) ExecutionContext { return ExecutionContext(f) }

// ContextEnvironment reads the side from the call's context and falls back
// to Fallback when the context is unmarked.
type ContextEnvironment struct {
	Fallback ExecutionContext
}

// ExecutionContext implements Environment.
func (e ContextEnvironment) ExecutionContext(ctx context.Context) ExecutionContext {
	if ec := ExecutionContextFrom(ctx); ec != Unknown {
		return ec
	}
	return e.Fallback
}

// DefaultEnvironment is used by proxies built without WithEnvironment.
// Every server entry point marks its context, so proxies called from there
// are rejected while unmarked client code is allowed through.
var DefaultEnvironment Environment = ContextEnvironment{Fallback: Client}

// SideKey is the container key holding the ExecutionContext a container
// runs on. NewDispatcher marks its container Server; applications mark
// theirs when they are created.
const SideKey = "bridge.side"

// SideOf returns the side c is marked with, or Unknown.
func SideOf(c *container.Container) ExecutionContext {
	v, err := c.Get(SideKey)
	if err != nil {
		return Unknown
	}
	ec, _ := v.(ExecutionContext)
	return ec
}
