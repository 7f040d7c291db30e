package container

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory is a function that builds a concrete value from the container.
type Factory func(c *Container) any

// binding holds a registered factory and whether it is a singleton.
type binding struct {
	factory   Factory
	singleton bool
}

// ── Errors ────────────────────────────────────────────────────────────────────

// ErrNotBound matches every NotBoundError via errors.Is.
var ErrNotBound = errors.New("container: not bound")

// NotBoundError is returned by Get when nothing is registered for an abstract.
type NotBoundError struct{ Abstract string }

// Error implements the error interface.
func (e *NotBoundError) Error() string {
	// Example: container: no binding registered for "greet"
	return "container: no binding registered for " + strconv.Quote(e.Abstract)
}

// Is reports whether target is ErrNotBound.
func (e *NotBoundError) Is(target error) bool { return target == ErrNotBound }

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the IoC container; mirrors Laravel's Illuminate\Container\Container.
//
// It supports:
//   - Bind / Singleton / Instance / Alias
//   - Make / Get (error-returning)
//   - Tags (group multiple abstracts under one tag)
//   - Resolved event callbacks
//
// Resolution is safe for concurrent use. Two goroutines racing on the first
// resolution of a singleton both run the factory but observe the same instance.
type Container struct {
	mu sync.RWMutex

	// abstract → binding
	bindings map[string]*binding

	// abstract → resolved singleton instance
	instances map[string]any

	// alias → abstract (canonical key)
	aliases map[string]string

	// tag → []abstract
	tags map[string][]string

	afterResolving []func(string, any)
}

// New creates an empty container.
func New() *Container {
	c := &Container{
		bindings:  make(map[string]*binding),
		instances: make(map[string]any),
		aliases:   make(map[string]string),
		tags:      make(map[string][]string),
	}
	// Bind the container to itself; like Laravel's $app->instance()
	c.Instance("container", c)
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a transient (new instance each Make) factory.
//
//	// Laravel: $app->bind(GreetAction::class, fn($app) => new GreetAction($app))
//	c.Bind("greet", func(c *container.Container) any {
//	    return func(name string) string { return "Hello, " + name }
//	})
func (c *Container) Bind(abstract string, factory Factory) {
	c.bind(abstract, factory, false)
}

// Singleton registers a factory whose result is cached after first resolution.
//
//	// Laravel: $app->singleton(Dispatcher::class, fn($app) => new Dispatcher($app))
//	c.Singleton("bridge.dispatcher", func(c *container.Container) any {
//	    return bridge.NewDispatcher(c)
//	})
func (c *Container) Singleton(abstract string, factory Factory) {
	c.bind(abstract, factory, true)
}

// Instance registers a pre-built value as a singleton.
//
//	// Laravel: $app->instance(Config::class, $config)
//	c.Instance("config", myConfig)
func (c *Container) Instance(abstract string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonical(abstract)
	delete(c.bindings, key)
	c.instances[key] = instance
}

func (c *Container) bind(abstract string, factory Factory, singleton bool) {
	if factory == nil {
		panic(fmt.Sprintf("container: nil factory for [%s]", abstract))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonical(abstract)

	// Drop an existing singleton instance so it's rebuilt with the new factory
	delete(c.instances, key)
	c.bindings[key] = &binding{factory: factory, singleton: singleton}
}

// Alias registers an alternative name for an abstract.
//
//	// Laravel: $app->alias('config', 'configuration')
//	c.Alias("config", "configuration")
func (c *Container) Alias(abstract, alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if abstract == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", abstract))
	}
	c.aliases[alias] = c.canonical(abstract)
}

// ── Tags ──────────────────────────────────────────────────────────────────────

// Tag associates multiple abstracts under a named group.
//
//	// Laravel: $app->tag([GreetAction::class, CheckoutAction::class], 'actions')
//	c.Tag([]string{"greet", "checkout"}, "actions")
func (c *Container) Tag(abstracts []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, abs := range abstracts {
		if !contains(c.tags[tag], abs) {
			c.tags[tag] = append(c.tags[tag], abs)
		}
	}
}

// TaggedKeys returns the abstracts registered under a tag, in tagging order.
func (c *Container) TaggedKeys(tag string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.tags[tag]...)
}

// Tagged resolves all abstracts registered under a tag.
//
//	// Laravel: $app->tagged('actions')
//	actions := c.Tagged("actions")  // []any
func (c *Container) Tagged(tag string) []any {
	abstracts := c.TaggedKeys(tag)
	result := make([]any, 0, len(abstracts))
	for _, abs := range abstracts {
		result = append(result, c.Make(abs))
	}
	return result
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves an abstract from the container and panics when it is not bound.
//
//	// Laravel: $app->make(Dispatcher::class)
//	d := c.Make("bridge.dispatcher")
func (c *Container) Make(abstract string) any {
	instance, err := c.Get(abstract)
	if err != nil {
		panic(err)
	}
	return instance
}

// Get resolves an abstract, returning a *NotBoundError instead of panicking.
func (c *Container) Get(abstract string) (any, error) {
	c.mu.RLock()
	key := c.canonical(abstract)
	if inst, ok := c.instances[key]; ok {
		c.mu.RUnlock()
		return inst, nil
	}
	b, ok := c.bindings[key]
	c.mu.RUnlock()

	if !ok {
		return nil, &NotBoundError{Abstract: abstract}
	}
	return c.build(key, b), nil
}

// build runs a factory outside the lock so factories may resolve other bindings.
func (c *Container) build(key string, b *binding) any {
	instance := b.factory(c)

	if b.singleton {
		c.mu.Lock()
		if existing, ok := c.instances[key]; ok {
			c.mu.Unlock()
			return existing
		}
		c.instances[key] = instance
		c.mu.Unlock()
	}

	c.fireAfterResolving(key, instance)
	return instance
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound returns true if an abstract has been registered.
//
//	// Laravel: $app->bound(Dispatcher::class)
func (c *Container) Bound(abstract string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := c.canonical(abstract)
	_, hasBinding := c.bindings[key]
	_, hasInstance := c.instances[key]
	return hasBinding || hasInstance
}

// Bindings returns all registered abstract keys, sorted.
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings)+len(c.instances))
	for k := range c.bindings {
		out = append(out, k)
	}
	for k := range c.instances {
		if _, already := c.bindings[k]; !already {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// canonical resolves an alias to its canonical key. Callers hold mu.
func (c *Container) canonical(abstract string) string {
	if target, ok := c.aliases[abstract]; ok {
		return target
	}
	return abstract
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// AfterResolving registers a callback fired after any factory-built abstract
// is resolved. Cached singletons and instances do not fire it again.
//
//	// Laravel: $app->afterResolving(fn($object, $app) => ...)
func (c *Container) AfterResolving(cb func(abstract string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireAfterResolving(abstract string, instance any) {
	c.mu.RLock()
	cbs := c.afterResolving
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(abstract, instance)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve is a generic helper that calls Make and type-asserts the result.
//
//	// Instead of: cfg := c.Make("config").(*config.Config)
//	// Write:      cfg := container.Resolve[*config.Config](c, "config")
func Resolve[T any](c *Container, abstract string) T {
	instance := c.Make(abstract)
	typed, ok := instance.(T)
	if !ok {
		panic(fmt.Sprintf("container: Resolve[%T]: [%s] resolved to %T", *new(T), abstract, instance))
	}
	return typed
}
