package main

import (
	"context"
	"io"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/di"
)

// run serves the catalog until ctx is cancelled or the server fails and
// returns the process exit code. Container failures are reported to
// stderr because the application logger may not exist yet.
func run(ctx context.Context, stderr io.Writer, opts ...fx.Option) int {
	boot := slog.New(slog.NewJSONHandler(stderr, nil))

	options := []fx.Option{fx.Provide(func() context.Context { return ctx })}
	options = append(options, di.Module(opts...))
	app := fx.New(options...)

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		boot.Error("failed to start application", slog.Any("error", err))
		return 1
	}

	code := 0
	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		code = sig.ExitCode
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		boot.Error("failed to stop application", slog.Any("error", err))
		return 1
	}
	return code
}
