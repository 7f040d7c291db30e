package jsonrpc

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"

	"github.com/km-arc/go-actions/framework/bridge"
	gohttp "github.com/km-arc/go-actions/framework/http"
	"github.com/km-arc/go-actions/framework/inject"
	"github.com/km-arc/go-actions/framework/routing"
	"github.com/km-arc/go-actions/framework/validation"
)

// Method is the JSON-RPC method name of the dispatch entry point.
const Method = "Bridge.Dispatch"

// CallIDHeader correlates client and server log lines for one call.
const CallIDHeader = "X-Bridge-Call-Id"

// Error codes beyond the JSON-RPC 2.0 reserved ones.
const (
	CodeInvalidTarget   json2.ErrorCode = -32001
	CodeTokenNotFound   json2.ErrorCode = -32002
	CodeMisusedProxy    json2.ErrorCode = -32003
	CodeBadResult       json2.ErrorCode = -32004
	CodeInvalidArgument                 = json2.E_BAD_PARAMS
	CodeRemote                          = json2.E_SERVER
)

func codeFor(kind bridge.FaultKind) json2.ErrorCode {
	switch kind {
	case bridge.FaultInvalidTarget:
		return CodeInvalidTarget
	case bridge.FaultTokenNotFound:
		return CodeTokenNotFound
	case bridge.FaultMisusedProxy:
		return CodeMisusedProxy
	case bridge.FaultBadResult:
		return CodeBadResult
	case bridge.FaultInvalidArgument:
		return CodeInvalidArgument
	}
	return CodeRemote
}

type serverOptions struct {
	registry *inject.Registry
	secret   string
	log      *zap.Logger
}

// ServerOption configures NewHandler and Mount.
type ServerOption func(*serverOptions)

// WithTokens exposes reg's keys on the tokens listing route.
func WithTokens(reg *inject.Registry) ServerOption {
	return func(o *serverOptions) { o.registry = reg }
}

// WithServerSecret requires "Authorization: Bearer <secret>" on every route.
func WithServerSecret(secret string) ServerOption {
	return func(o *serverOptions) { o.secret = secret }
}

// WithServerLogger sets the server's logger.
func WithServerLogger(log *zap.Logger) ServerOption {
	return func(o *serverOptions) {
		if log != nil {
			o.log = log
		}
	}
}

func newServerOptions(opts []ServerOption) serverOptions {
	o := serverOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.Named("jsonrpc")
	return o
}

// Service is the gorilla RPC receiver that exposes a dispatcher as
// Bridge.Dispatch.
type Service struct {
	dispatch bridge.Dispatcher
	log      *zap.Logger
}

// Dispatch runs one call. Failures are returned as *json2.Error carrying a
// bridge.Fault in Data.
func (s *Service) Dispatch(r *http.Request, call *bridge.Call, reply *bridge.Result) error {
	callID := gohttp.NewRequest(r).Header(CallIDHeader)
	if callID == "" {
		callID = uuid.NewString()
	}
	log := s.log.With(zap.String("call_id", callID), zap.String("key", call.Key))

	res, err := bridge.ServeCall(r.Context(), s.dispatch, *call)
	if err != nil {
		f := bridge.FaultOf(call.Key, err)
		log.Warn("dispatch failed", zap.String("kind", string(f.Kind)), zap.Error(err))
		return &json2.Error{Code: codeFor(f.Kind), Message: err.Error(), Data: f}
	}
	log.Debug("dispatched", zap.Int("args", len(call.Args)))
	*reply = res
	return nil
}

// NewHandler returns the JSON-RPC 2.0 endpoint serving d.
func NewHandler(d bridge.Dispatcher, opts ...ServerOption) http.Handler {
	o := newServerOptions(opts)
	return newRPCServer(d, o)
}

func newRPCServer(d bridge.Dispatcher, o serverOptions) *rpc.Server {
	s := rpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(&Service{dispatch: d, log: o.log}, "Bridge"); err != nil {
		// Only reachable if Service stops matching gorilla's method shape.
		panic(err)
	}
	return s
}

// Mount exposes d on r:
//
//	POST path                JSON-RPC 2.0, method Bridge.Dispatch
//	GET  path/tokens         {"data": [declared keys]}, ?prefix= filters
//	GET  path/tokens/{key}   {"data": {"key": ..., "type": ...}}
//
// Every route sits behind the bearer secret when one is configured. The
// POST route answers 415 unless the body is application/json.
func Mount(r *routing.Router, path string, d bridge.Dispatcher, opts ...ServerOption) {
	o := newServerOptions(opts)
	srv := newRPCServer(d, o)

	r.Group(func(r *routing.Router) {
		r.Middleware(gohttp.RequireBearer(o.secret))
		r.Post(path, gohttp.RequireJSON(srv).ServeHTTP)
		r.Get(path+"/tokens", o.listTokens)
		r.Get(path+"/tokens/*", o.showToken)
	})
}

func (o serverOptions) listTokens(w http.ResponseWriter, r *http.Request) {
	prefix := gohttp.NewRequest(r).Query("prefix")
	keys := []string{}
	if o.registry != nil {
		for _, key := range o.registry.Keys() {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	gohttp.NewResponse(w).Success(keys)
}

// showToken describes one declared token. Keys may contain '/', hence the
// wildcard route.
func (o serverOptions) showToken(w http.ResponseWriter, r *http.Request) {
	key := gohttp.NewRequest(r).RouteParam("*")
	res := gohttp.NewResponse(w)

	v := validation.Make(map[string]string{"key": key}, validation.Rules{"key": inject.KeyRules})
	if v.Fails() {
		res.ValidationError(v.Errors())
		return
	}
	if o.registry == nil {
		res.NotFound("Token")
		return
	}
	typ, ok := o.registry.Lookup(key)
	if !ok {
		res.NotFound("Token")
		return
	}
	res.Success(map[string]string{"key": key, "type": typ.String()})
}
