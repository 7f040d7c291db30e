// Package bridge lets client code call server-side actions through proxies
// that look exactly like the real thing.
//
// The server container holds the real actions. NewDispatcher wraps it in a
// single entry point that takes a token key plus arguments, resolves the key
// and calls what it finds. A transport (see framework/transport) carries that
// entry point across the process boundary and registers the resulting remote
// Dispatcher in the client container under DispatcherToken.
//
// The client container holds proxies under the same keys. Proxy builds a
// Descriptor whose factory turns the dispatcher into a func of the action's
// exact type:
//
//	var GreetToken = inject.MustDeclare[func(context.Context, string) (string, error)](reg, "greet")
//
//	// server
//	inject.ProvideValue(server, GreetToken, greet)
//	inject.ProvideValue(server, bridge.DispatcherToken, bridge.NewDispatcher(server, bridge.WithRegistry(reg)))
//
//	// client
//	inject.ProvideValue(client, bridge.DispatcherToken, remote)
//	bridge.Proxy(GreetToken).Register(client)
//
//	greet := inject.MustResolve(client, GreetToken)
//	msg, err := greet(ctx, "Ann") // "Hello, Ann"
//
// A proxy refuses to run in a server execution context and returns a
// *MisusedProxyError instead: server code must use the real action. Which
// side a call runs on comes from the proxy's Environment, by default the
// marker that WithExecutionContext puts on the call's context.
package bridge
