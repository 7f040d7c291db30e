// Package container provides a Laravel-compatible IoC (Inversion of Control)
// container and Service Provider system for Go.
//
// # Overview
//
// The container manages the instantiation and lifecycle of an application's
// dependencies: transient bindings, singletons, pre-built instances, aliases
// and tags. Because Go has no runtime constructor reflection, auto-wiring is
// replaced by explicit factory functions.
//
// The actions bridge registers two kinds of entries here: real actions on the
// server container, and proxies (plus the dispatcher they depend on) on the
// client container. Both use the same keys.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register providers: registry.Register(&MyProvider{})
//  3. Boot: registry.Boot() (safe to resolve everything after this)
//  4. Serve requests
//
// # Bindings
//
//	// Transient; new instance every Make()
//	c.Bind("greet", func(c *container.Container) any { return greet })
//
//	// Singleton; created once, reused
//	c.Singleton("bridge.dispatcher", func(c *container.Container) any {
//	    return bridge.NewDispatcher(c)
//	})
//
//	// Pre-built value
//	c.Instance("config", cfg)
//
//	// Alias
//	c.Alias("config", "configuration")
//
// # Resolving
//
//	raw := c.Make("greet")                 // panics when unbound
//	raw, err := c.Get("greet")             // *NotBoundError when unbound
//	cfg := container.Resolve[*config.Config](c, "config")
//
// # Deferred Providers
//
//	type TransportProvider struct{ container.BaseProvider }
//
//	func (p *TransportProvider) IsDeferred() bool   { return true }
//	func (p *TransportProvider) Provides() []string { return []string{"bridge.dispatcher"} }
//	func (p *TransportProvider) Register(app *container.Container) {
//	    app.Singleton("bridge.dispatcher", func(c *container.Container) any {
//	        return dial() // only called on first app.Make("bridge.dispatcher")
//	    })
//	}
package container
