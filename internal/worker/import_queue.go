package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/usecase"
)

// ErrQueueStopped is returned by Submit once the queue has been stopped.
var ErrQueueStopped = errors.New("import queue stopped")

// ImportRunner exposes the subset of application functionality required by the queue.
type ImportRunner interface {
	Run(ctx context.Context, req usecase.ImportRequest) (*model.ImportRecord, error)
	Abandon(ctx context.Context, req usecase.ImportRequest, cause error)
}

// ImportQueue runs submitted imports one at a time in submission order.
type ImportQueue struct {
	runner ImportRunner
	logger *slog.Logger

	jobs    chan usecase.ImportRequest
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

// NewImportQueue constructs a queue holding at most size waiting imports.
func NewImportQueue(runner ImportRunner, size int, logger *slog.Logger) *ImportQueue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportQueue{
		runner: runner,
		logger: logger,
		jobs:   make(chan usecase.ImportRequest, size),
	}
}

// Start launches the single import worker.
func (q *ImportQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil || q.stopped {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go q.worker(runCtx)
}

// Stop cancels the running import and waits for the worker to exit.
// Imports still waiting in the queue are dropped and recorded as failed.
func (q *ImportQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.mu.Unlock()

	q.wg.Wait()

	for {
		select {
		case req := <-q.jobs:
			q.drop(req)
		default:
			return
		}
	}
}

// Submit enqueues a prepared request without blocking.
func (q *ImportQueue) Submit(req usecase.ImportRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueStopped
	}

	select {
	case q.jobs <- req:
		return nil
	default:
		return fmt.Errorf("dataset %s: %w", req.Dataset, domainErrors.ErrQueueFull)
	}
}

// Pending reports the number of imports waiting to run.
func (q *ImportQueue) Pending() int {
	return len(q.jobs)
}

func (q *ImportQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-q.jobs:
			if ctx.Err() != nil {
				q.drop(req)
				return
			}
			q.handle(ctx, req)
		}
	}
}

func (q *ImportQueue) handle(ctx context.Context, req usecase.ImportRequest) {
	record, err := q.runner.Run(ctx, req)
	if err != nil {
		q.logger.Error("queued import failed", slog.String("dataset", req.Dataset), slog.String("error", err.Error()))
		return
	}
	q.logger.Info("queued import completed",
		slog.String("dataset", req.Dataset),
		slog.Int("inserted", record.Inserted),
		slog.Int("updated", record.Updated),
		slog.Int("skipped", record.Skipped),
	)
}

func (q *ImportQueue) drop(req usecase.ImportRequest) {
	q.logger.Warn("queued import dropped", slog.String("dataset", req.Dataset))
	q.runner.Abandon(context.Background(), req, ErrQueueStopped)
}
