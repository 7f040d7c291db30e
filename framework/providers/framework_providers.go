package providers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/km-arc/go-actions/framework/bridge"
	"github.com/km-arc/go-actions/framework/config"
	"github.com/km-arc/go-actions/framework/container"
	"github.com/km-arc/go-actions/framework/inject"
	"github.com/km-arc/go-actions/framework/logging"
	"github.com/km-arc/go-actions/framework/routing"
	"github.com/km-arc/go-actions/framework/transport/grpcbridge"
	"github.com/km-arc/go-actions/framework/transport/jsonrpc"
)

// Abstracts bound by the framework providers.
const (
	ConfigKey     = "config"
	LogKey        = "log"
	RouterKey     = "router"
	RegistryKey   = "bridge.registry"
	GRPCServerKey = "bridge.grpc"
	RemoteKey     = "bridge.remote"
)

// Transport names accepted in BRIDGE_TRANSPORT.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the application configuration as "config".
// A pre-loaded Config wins over EnvFiles.
//
// Bound abstracts:
//   - "config"         → *config.Config
//   - "configuration"  → alias of "config"
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->singleton('config', fn() => new Repository($items));
type ConfigServiceProvider struct {
	container.BaseProvider
	Config   *config.Config
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(app *container.Container) {
	if p.Config != nil {
		app.Instance(ConfigKey, p.Config)
	} else {
		envFiles := p.EnvFiles
		app.Singleton(ConfigKey, func(c *container.Container) any {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				panic(err)
			}
			return cfg
		})
	}
	app.Alias(ConfigKey, "configuration")
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the zap logger built from "config".
//
// Bound abstracts:
//   - "log"  → *zap.Logger
//
// Laravel equivalent:
//
//	// Illuminate\Log\LogServiceProvider
//	$app->singleton('log', fn($app) => new LogManager($app));
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger // optional override, e.g. zap.NewNop() in tests
}

func (p *LoggingServiceProvider) Register(app *container.Container) {
	if p.Logger != nil {
		app.Instance(LogKey, p.Logger)
		return
	}
	app.Singleton(LogKey, func(c *container.Container) any {
		log, err := logging.New(container.Resolve[*config.Config](c, ConfigKey))
		if err != nil {
			panic(err)
		}
		return log
	})
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Bound abstracts:
//   - "router"  → *routing.Router
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) {
	app.Singleton(RouterKey, func(c *container.Container) any {
		return routing.New(container.Resolve[*zap.Logger](c, LogKey))
	})
}

// ── BridgeServerServiceProvider ───────────────────────────────────────────────

// BridgeServerServiceProvider turns the container into a bridge server: it
// binds the dispatcher over the container itself and, at boot, exposes it on
// the configured transport.
//
// Bound abstracts:
//   - "bridge.registry"    → *inject.Registry
//   - "bridge.dispatcher"  → bridge.Dispatcher
//   - "bridge.grpc"        → *grpc.Server (transport grpc)
//
// Routes (transport http):
//   - POST {BRIDGE_ENDPOINT}
//   - GET  {BRIDGE_ENDPOINT}/tokens
type BridgeServerServiceProvider struct {
	container.BaseProvider
	Registry *inject.Registry // declared tokens; nil allows every bound key
}

func (p *BridgeServerServiceProvider) Register(app *container.Container) {
	reg := p.Registry
	app.Instance(RegistryKey, reg)

	inject.ProvideSingleton(app, bridge.DispatcherToken, func(c *container.Container) bridge.Dispatcher {
		opts := []bridge.DispatcherOption{bridge.WithLogger(container.Resolve[*zap.Logger](c, LogKey))}
		if reg != nil {
			opts = append(opts, bridge.WithRegistry(reg))
		}
		return bridge.NewDispatcher(c, opts...)
	})

	app.Singleton(GRPCServerKey, func(c *container.Container) any {
		cfg := container.Resolve[*config.Config](c, ConfigKey)
		return grpcbridge.NewServer(inject.MustResolve(c, bridge.DispatcherToken),
			grpcbridge.WithServerSecret(cfg.Bridge.Secret),
			grpcbridge.WithServerLogger(container.Resolve[*zap.Logger](c, LogKey)),
		)
	})
}

func (p *BridgeServerServiceProvider) Boot(app *container.Container) {
	cfg := container.Resolve[*config.Config](app, ConfigKey)
	if cfg.Bridge.Transport != TransportHTTP {
		return
	}
	opts := []jsonrpc.ServerOption{
		jsonrpc.WithServerSecret(cfg.Bridge.Secret),
		jsonrpc.WithServerLogger(container.Resolve[*zap.Logger](app, LogKey)),
	}
	if p.Registry != nil {
		opts = append(opts, jsonrpc.WithTokens(p.Registry))
	}
	jsonrpc.Mount(container.Resolve[*routing.Router](app, RouterKey), cfg.Bridge.Endpoint,
		inject.MustResolve(app, bridge.DispatcherToken), opts...)
}

// ── BridgeClientServiceProvider ───────────────────────────────────────────────

// Remote is a transport client that can act as the client-side dispatcher.
type Remote interface {
	Dispatcher() bridge.Dispatcher
}

// BridgeClientServiceProvider binds a remote dispatcher for the configured
// transport. It is deferred: nothing connects until the first proxy resolves
// the dispatcher.
//
// Bound abstracts:
//   - "bridge.remote"      → Remote (*jsonrpc.Client or *grpcbridge.Client)
//   - "bridge.dispatcher"  → bridge.Dispatcher
type BridgeClientServiceProvider struct {
	container.BaseProvider
}

func (p *BridgeClientServiceProvider) Register(app *container.Container) {
	app.Singleton(RemoteKey, func(c *container.Container) any {
		remote, err := newRemote(container.Resolve[*config.Config](c, ConfigKey), container.Resolve[*zap.Logger](c, LogKey))
		if err != nil {
			panic(err)
		}
		return remote
	})
	inject.ProvideSingleton(app, bridge.DispatcherToken, func(c *container.Container) bridge.Dispatcher {
		return container.Resolve[Remote](c, RemoteKey).Dispatcher()
	})
}

func (p *BridgeClientServiceProvider) Provides() []string {
	return []string{RemoteKey, bridge.DispatcherToken.Key()}
}

func (p *BridgeClientServiceProvider) IsDeferred() bool { return true }

func newRemote(cfg *config.Config, log *zap.Logger) (Remote, error) {
	switch cfg.Bridge.Transport {
	case TransportHTTP:
		return jsonrpc.NewClient(cfg.Bridge.URL,
			jsonrpc.WithSecret(cfg.Bridge.Secret),
			jsonrpc.WithTimeout(cfg.Bridge.Timeout),
			jsonrpc.WithLogger(log),
		), nil
	case TransportGRPC:
		return grpcbridge.Dial(cfg.Bridge.Target,
			grpcbridge.WithSecret(cfg.Bridge.Secret),
			grpcbridge.WithTimeout(cfg.Bridge.Timeout),
			grpcbridge.WithLogger(log),
		)
	}
	return nil, fmt.Errorf("providers: unknown bridge transport %q", cfg.Bridge.Transport)
}
