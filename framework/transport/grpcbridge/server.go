package grpcbridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/km-arc/go-actions/framework/bridge"
)

// callIDKey is the metadata key correlating client and server log lines.
const callIDKey = "x-bridge-call-id"

func codeFor(kind bridge.FaultKind) codes.Code {
	switch kind {
	case bridge.FaultInvalidTarget:
		return codes.FailedPrecondition
	case bridge.FaultTokenNotFound:
		return codes.NotFound
	case bridge.FaultInvalidArgument:
		return codes.InvalidArgument
	case bridge.FaultMisusedProxy:
		return codes.PermissionDenied
	case bridge.FaultBadResult:
		return codes.Internal
	}
	return codes.Unknown
}

// faultStatus converts a dispatch error into a status whose details carry
// the JSON-encoded bridge.Fault.
func faultStatus(key string, err error) error {
	f := bridge.FaultOf(key, err)
	st := status.New(codeFor(f.Kind), err.Error())
	raw, mErr := json.Marshal(f)
	if mErr != nil {
		return st.Err()
	}
	if detailed, dErr := st.WithDetails(wrapperspb.String(string(raw))); dErr == nil {
		st = detailed
	}
	return st.Err()
}

type serverOptions struct {
	secret string
	log    *zap.Logger
	extra  []grpc.ServerOption
}

// ServerOption configures NewServer and Register.
type ServerOption func(*serverOptions)

// WithServerSecret requires "authorization: Bearer <secret>" metadata.
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

// WithGRPCServerOptions passes extra options to grpc.NewServer.
func WithGRPCServerOptions(opts ...grpc.ServerOption) ServerOption {
	return func(o *serverOptions) { o.extra = append(o.extra, opts...) }
}

func newServerOptions(opts []ServerOption) serverOptions {
	o := serverOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.Named("grpc")
	return o
}

// Server implements BridgeServer over a dispatcher.
type Server struct {
	dispatch bridge.Dispatcher
	log      *zap.Logger
}

// Dispatch decodes a bridge.Call, runs it and encodes the bridge.Result.
func (s *Server) Dispatch(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var call bridge.Call
	if err := json.Unmarshal(in.GetValue(), &call); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "grpcbridge: decode call: %v", err)
	}
	log := s.log.With(zap.String("call_id", callID(ctx)), zap.String("key", call.Key))

	res, err := bridge.ServeCall(ctx, s.dispatch, call)
	if err != nil {
		log.Warn("dispatch failed", zap.Error(err))
		return nil, faultStatus(call.Key, err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, faultStatus(call.Key, &bridge.ResultError{Key: call.Key, Reason: err.Error()})
	}
	log.Debug("dispatched", zap.Int("args", len(call.Args)))
	return wrapperspb.Bytes(raw), nil
}

// Register registers the Bridge service for d on s.
func Register(s grpc.ServiceRegistrar, d bridge.Dispatcher, opts ...ServerOption) {
	o := newServerOptions(opts)
	RegisterBridgeServer(s, &Server{dispatch: d, log: o.log})
}

// NewServer returns a gRPC server exposing d, with panic recovery, optional
// bearer auth and the standard health service reporting SERVING.
func NewServer(d bridge.Dispatcher, opts ...ServerOption) *grpc.Server {
	o := newServerOptions(opts)

	interceptors := []grpc.UnaryServerInterceptor{recoverInterceptor(o.log)}
	if o.secret != "" {
		interceptors = append(interceptors, authInterceptor(o.secret))
	}
	s := grpc.NewServer(append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(interceptors...),
	}, o.extra...)...)

	RegisterBridgeServer(s, &Server{dispatch: d, log: o.log})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// ── Interceptors ─────────────────────────────────────────────────────────────

func recoverInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in handler",
					zap.String("method", info.FullMethod),
					zap.String("call_id", callID(ctx)),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				resp, err = nil, status.Error(codes.Internal, fmt.Sprintf("grpcbridge: panic: %v", r))
			}
		}()
		return handler(ctx, req)
	}
}

func authInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		if vals := md.Get("authorization"); len(vals) > 0 {
			token = strings.TrimPrefix(vals[0], "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return nil, status.Error(codes.Unauthenticated, "grpcbridge: invalid bearer token")
		}
		return handler(ctx, req)
	}
}

func callID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if vals := md.Get(callIDKey); len(vals) > 0 && vals[0] != "" {
		return vals[0]
	}
	return uuid.NewString()
}
