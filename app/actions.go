// Package app holds the demo application: the actions a server exposes and
// the proxies a client uses to reach them.
package app

import (
	"context"
	"strconv"

	"github.com/km-arc/go-actions/framework/bridge"
	"github.com/km-arc/go-actions/framework/container"
	"github.com/km-arc/go-actions/framework/inject"
	"github.com/km-arc/go-actions/framework/validation"
)

type (
	GreetFunc = func(ctx context.Context, name string) (string, error)
	AddFunc   = func(ctx context.Context, a, b int) (int, error)
)

// Tokens declares every action the server exposes. Both sides share it.
var Tokens = inject.NewRegistry()

var (
	GreetToken = inject.MustDeclare[GreetFunc](Tokens, "greet")
	AddToken   = inject.MustDeclare[AddFunc](Tokens, "add")
)

// Greet returns "Hello, <name>".
func Greet(_ context.Context, name string) (string, error) {
	v := validation.Make(map[string]string{"name": name}, validation.Rules{
		"name": "required|max:64",
	})
	if err := v.Err(); err != nil {
		return "", err
	}
	return "Hello, " + name, nil
}

// Add returns a+b.
func Add(_ context.Context, a, b int) (int, error) {
	v := validation.Make(map[string]string{"a": strconv.Itoa(a), "b": strconv.Itoa(b)}, validation.Rules{
		"a": "gte:0",
		"b": "gte:0",
	})
	if err := v.Err(); err != nil {
		return 0, err
	}
	return a + b, nil
}

// ── ActionsServiceProvider ────────────────────────────────────────────────────

// ActionsServiceProvider binds the real actions. Register it on the server.
//
//	// Laravel: $this->app->bind(GreetAction::class, fn() => new GreetAction)
type ActionsServiceProvider struct {
	container.BaseProvider
}

func (p *ActionsServiceProvider) Register(app *container.Container) {
	inject.ProvideValue(app, GreetToken, Greet)
	inject.ProvideValue(app, AddToken, Add)
}

// ── ProxiesServiceProvider ────────────────────────────────────────────────────

// ProxiesServiceProvider binds a proxy for every action. Register it on the
// client.
type ProxiesServiceProvider struct {
	container.BaseProvider
}

func (p *ProxiesServiceProvider) Register(app *container.Container) {
	bridge.Proxy(GreetToken).Register(app)
	bridge.Proxy(AddToken).Register(app)
}
