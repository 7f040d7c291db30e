package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/km-arc/go-actions/app"
	foundation "github.com/km-arc/go-actions/framework/app"
	"github.com/km-arc/go-actions/framework/inject"
)

func main() {
	mode := flag.String("mode", "server", "server or client")
	name := flag.String("name", "Ann", "name to greet (client mode)")
	envFile := flag.String("env", ".env", "env file to load")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch *mode {
	case "server":
		err = serve(ctx, *envFile)
	case "client":
		err = greet(ctx, *envFile, *name)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, envFile string) error {
	server := foundation.NewServer(
		foundation.WithEnvFiles(envFile),
		foundation.WithRegistry(app.Tokens),
	)
	server.Register(&app.ActionsServiceProvider{})
	defer server.Close()

	return server.Run(ctx)
}

func greet(ctx context.Context, envFile, name string) error {
	client := foundation.NewClient(foundation.WithEnvFiles(envFile))
	client.Register(&app.ProxiesServiceProvider{})
	client.Boot()
	defer client.Close()

	greeting, err := inject.MustResolve(client.Container, app.GreetToken)(client.Context(ctx), name)
	if err != nil {
		client.Logger().Error("greet failed", zap.Error(err))
		return err
	}
	fmt.Println(greeting)
	return nil
}
