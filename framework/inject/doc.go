// Package inject adds typed tokens on top of the string-keyed container.
//
// A Token[T] pairs a unique key with the type of the value stored under it.
// Only the key is ever sent between processes, so keys must be unique across
// everything a server exposes; the Registry enforces that.
//
//	reg := inject.NewRegistry()
//	var GreetToken = inject.MustDeclare[func(string) string](reg, "greet")
//
//	inject.ProvideValue(c, GreetToken, func(name string) string { return "Hello, " + name })
//	greet, err := inject.Resolve(c, GreetToken)
package inject
