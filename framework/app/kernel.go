package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/km-arc/go-actions/framework/bridge"
	"github.com/km-arc/go-actions/framework/config"
	"github.com/km-arc/go-actions/framework/container"
	"github.com/km-arc/go-actions/framework/inject"
	"github.com/km-arc/go-actions/framework/providers"
	"github.com/km-arc/go-actions/framework/routing"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Application is the top-level application container.
// It embeds the IoC Container and ProviderRegistry so user code can
// call app.Bind(), app.Singleton(), app.Register() directly,
// like $app in Laravel's bootstrap/app.php.
//
// An Application is either a server (it owns the real actions and the
// dispatcher over them) or a client (it holds proxies and a remote
// dispatcher).
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	side bridge.ExecutionContext

	mu     sync.Mutex
	remote io.Closer // set once the client's remote dispatcher is built
}

type options struct {
	envFiles []string
	cfg      *config.Config
	log      *zap.Logger
	registry *inject.Registry
}

// Option configures NewServer and NewClient.
type Option func(*options)

// WithEnvFiles sets the .env files loaded into the configuration.
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.envFiles = files }
}

// WithConfig uses cfg instead of loading configuration from the environment.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger uses log instead of building one from configuration.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRegistry restricts a server to the tokens declared in reg.
func WithRegistry(reg *inject.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// NewServer creates the server application. Register action providers on
// it, then call Run.
func NewServer(opts ...Option) *Application {
	o := newOptions(opts)
	a := newApplication(bridge.Server, o)
	a.Register(&providers.BridgeServerServiceProvider{Registry: o.registry})
	return a
}

// NewClient creates the client application. Register proxies on it with
// bridge.Proxy(tok).Register(app.Container).
func NewClient(opts ...Option) *Application {
	o := newOptions(opts)
	a := newApplication(bridge.Client, o)
	a.Register(&providers.BridgeClientServiceProvider{})
	return a
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newApplication(side bridge.ExecutionContext, o options) *Application {
	c := container.New()
	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		side:      side,
	}
	c.Instance("app", a)
	c.Instance(bridge.SideKey, side)
	c.AfterResolving(func(abstract string, instance any) {
		if abstract != providers.RemoteKey {
			return
		}
		if closer, ok := instance.(io.Closer); ok {
			a.mu.Lock()
			a.remote = closer
			a.mu.Unlock()
		}
	})

	// Framework core providers, in the same order as Laravel.
	a.Register(&providers.ConfigServiceProvider{Config: o.cfg, EnvFiles: o.envFiles})
	a.Register(&providers.LoggingServiceProvider{Logger: o.log})
	a.Register(&providers.RoutingServiceProvider{})
	return a
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) {
	a.Providers.Register(provider)
}

// Boot runs the Boot() phase on all providers.
func (a *Application) Boot() {
	a.Providers.Boot()
}

// Side reports whether a is a server or a client application.
func (a *Application) Side() bridge.ExecutionContext { return a.side }

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.Resolve[*config.Config](a.Container, providers.ConfigKey)
}

// Logger resolves *zap.Logger from the container.
func (a *Application) Logger() *zap.Logger {
	return container.Resolve[*zap.Logger](a.Container, providers.LogKey)
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.Resolve[*routing.Router](a.Container, providers.RouterKey)
}

// Dispatcher resolves the bridge dispatcher: the container-backed one on a
// server, the remote one on a client.
func (a *Application) Dispatcher() bridge.Dispatcher {
	return inject.MustResolve(a.Container, bridge.DispatcherToken)
}

// ProxyKeys lists the keys of every proxy registered on a.
func (a *Application) ProxyKeys() []string {
	return a.TaggedKeys(bridge.ProxyTag)
}

// Context returns ctx marked with the side a runs on.
func (a *Application) Context(ctx context.Context) context.Context {
	return bridge.WithExecutionContext(ctx, a.side)
}

// Run boots the application (if needed), listens on the configured
// transport address and serves until ctx ends.
func (a *Application) Run(ctx context.Context) error {
	if a.side != bridge.Server {
		return errors.New("app: Run is only available on a server application")
	}
	cfg := a.Config()
	addr := cfg.Bridge.HTTPAddr
	if cfg.Bridge.Transport == providers.TransportGRPC {
		addr = cfg.Bridge.GRPCAddr
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", addr, err)
	}
	return a.Serve(ctx, lis)
}

// Serve boots the application (if needed) and serves the bridge on lis
// until ctx ends, then shuts down gracefully. Serve closes lis.
func (a *Application) Serve(ctx context.Context, lis net.Listener) error {
	if a.side != bridge.Server {
		_ = lis.Close()
		return errors.New("app: Serve is only available on a server application")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !a.Providers.Booted() {
		a.Boot()
	}
	cfg := a.Config()
	log := a.Logger()
	log.Info("serving actions",
		zap.String("transport", cfg.Bridge.Transport),
		zap.String("addr", lis.Addr().String()),
	)

	if cfg.Bridge.Transport == providers.TransportGRPC {
		return serveGRPC(ctx, container.Resolve[*grpc.Server](a.Container, providers.GRPCServerKey), lis)
	}
	return serveHTTP(ctx, &http.Server{Handler: a.Router(), ReadHeaderTimeout: 10 * time.Second}, lis)
}

func serveHTTP(ctx context.Context, srv *http.Server, lis net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := srv.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("app: shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve http: %w", err)
	}
}

func serveGRPC(ctx context.Context, srv *grpc.Server, lis net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("app: serve grpc: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("app: serve grpc: %w", err)
	}
}

// Close releases the remote connection of a client application, if one was
// opened, and flushes the logger.
func (a *Application) Close() error {
	a.mu.Lock()
	remote := a.remote
	a.remote = nil
	a.mu.Unlock()

	var err error
	if remote != nil {
		err = remote.Close()
	}
	_ = a.Logger().Sync()
	return err
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
