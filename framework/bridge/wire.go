package bridge

import (
	"context"
	"encoding/json"
	"errors"
)

// Call is a dispatch request as it travels between processes.
type Call struct {
	Key  string            `json:"key"`
	Args []json.RawMessage `json:"args"`
}

// Result is a dispatch response as it travels between processes.
type Result struct {
	Value json.RawMessage `json:"value,omitempty"`
}

// NewCall encodes args as JSON.
func NewCall(key string, args []any) (Call, error) {
	call := Call{Key: key, Args: make([]json.RawMessage, len(args))}
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return Call{}, &ArgumentError{Key: key, Index: i, Reason: err.Error()}
		}
		call.Args[i] = raw
	}
	return call, nil
}

// ServeCall runs call through d on behalf of a transport and encodes the
// result. The context is marked Server.
func ServeCall(ctx context.Context, d Dispatcher, call Call) (Result, error) {
	args := make([]any, len(call.Args))
	for i, raw := range call.Args {
		args[i] = raw
	}

	v, err := d(WithExecutionContext(ctx, Server), call.Key, args...)
	if err != nil {
		return Result{}, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Result{}, &ResultError{Key: call.Key, Reason: err.Error()}
	}
	return Result{Value: raw}, nil
}

// FaultKind classifies an error for transport.
type FaultKind string

const (
	FaultInvalidTarget   FaultKind = "invalid_target"
	FaultMisusedProxy    FaultKind = "misused_proxy"
	FaultTokenNotFound   FaultKind = "token_not_found"
	FaultInvalidArgument FaultKind = "invalid_argument"
	FaultBadResult       FaultKind = "bad_result"
	FaultRemote          FaultKind = "remote"
)

// Fault is the transport form of a dispatch error. Err rebuilds the typed
// error on the receiving side so errors.Is keeps working.
type Fault struct {
	Kind    FaultKind `json:"kind"`
	Key     string    `json:"key,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Index   int       `json:"index"`
	Message string    `json:"message"`
}

// FaultOf classifies err raised while dispatching key.
func FaultOf(key string, err error) Fault {
	f := Fault{Kind: FaultRemote, Key: key, Message: err.Error(), Reason: err.Error()}

	var (
		invalid  *InvalidTargetError
		misused  *MisusedProxyError
		notFound *TokenNotFoundError
		argErr   *ArgumentError
		resErr   *ResultError
		remote   *RemoteError
	)
	switch {
	case errors.As(err, &invalid):
		f.Kind, f.Key, f.Reason = FaultInvalidTarget, invalid.Key, invalid.Reason
	case errors.As(err, &misused):
		f.Kind, f.Key, f.Reason = FaultMisusedProxy, misused.Key, misused.Context.String()
	case errors.As(err, &notFound):
		f.Kind, f.Key, f.Reason = FaultTokenNotFound, notFound.Key, ""
	case errors.As(err, &argErr):
		f.Kind, f.Key, f.Reason, f.Index = FaultInvalidArgument, argErr.Key, argErr.Reason, argErr.Index
	case errors.As(err, &resErr):
		f.Kind, f.Key, f.Reason = FaultBadResult, resErr.Key, resErr.Reason
	case errors.As(err, &remote):
		f.Key, f.Reason = remote.Key, remote.Message
	}
	return f
}

// Err rebuilds the typed error described by f.
func (f Fault) Err() error {
	switch f.Kind {
	case FaultInvalidTarget:
		return &InvalidTargetError{Key: f.Key, Reason: f.Reason}
	case FaultMisusedProxy:
		ec, _ := ParseExecutionContext(f.Reason)
		return &MisusedProxyError{Key: f.Key, Context: ec}
	case FaultTokenNotFound:
		return &TokenNotFoundError{Key: f.Key}
	case FaultInvalidArgument:
		return &ArgumentError{Key: f.Key, Index: f.Index, Reason: f.Reason}
	case FaultBadResult:
		return &ResultError{Key: f.Key, Reason: f.Reason}
	}
	msg := f.Reason
	if msg == "" {
		msg = f.Message
	}
	return &RemoteError{Key: f.Key, Message: msg}
}
