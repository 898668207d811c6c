package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/config"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
	"github.com/polkiloo/plotcatalog/internal/usecase"
	"github.com/polkiloo/plotcatalog/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		NewCatalogFacade,
		newHTTPServer,
		newImportQueue,
		func(q *worker.ImportQueue) ImportSubmitter { return q },
		func(s repository.Store) HealthChecker { return s },
	),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:              p.Config.RunAddress,
		Handler:           p.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type workerParams struct {
	fx.In

	Imports *usecase.ImportUseCase
	Config  *config.Config
	Logger  *slog.Logger
}

func newImportQueue(p workerParams) *worker.ImportQueue {
	return worker.NewImportQueue(p.Imports, p.Config.ImportQueueSize, p.Logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Queue      *worker.ImportQueue
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting plotcatalog", slog.String("addr", p.Server.Addr))
			// The start context ends with OnStart; the queue lives until OnStop.
			p.Queue.Start(context.WithoutCancel(ctx))
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			err := p.Server.Shutdown(shutdownCtx)
			p.Queue.Stop()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("plotcatalog stopped")
			return nil
		},
	})
}
