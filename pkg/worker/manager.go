package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/core/services"
	"github.com/jakechorley/shiftsync/pkg/db"
)

// Options configures the worker pool
type Options struct {
	// Count is the number of concurrent workers. Each worker owns at most
	// one request at a time.
	Count int

	// PollInterval is how often an idle worker checks for claimable requests.
	PollInterval time.Duration

	// LockTTL is the lease a worker takes on a claimed request. A request
	// whose lease expired becomes claimable again.
	LockTTL time.Duration

	// Process tunes per-shift retry behavior.
	Process services.ProcessOptions
}

// Manager owns a pool of request workers
type Manager struct {
	database db.Database
	client   services.ShiftAPI
	logger   *zap.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wakeup chan struct{}
}

// StartManager spawns opts.Count workers and returns immediately.
// Call Shutdown to stop them.
func StartManager(ctx context.Context, database db.Database, client services.ShiftAPI, logger *zap.Logger, opts Options) *Manager {
	mgrCtx, cancel := context.WithCancel(ctx)
	m := &Manager{
		database: database,
		client:   client,
		logger:   logger,
		opts:     opts,
		ctx:      mgrCtx,
		cancel:   cancel,
		wakeup:   make(chan struct{}, opts.Count),
	}

	logger.Info("Starting request workers", zap.Int("count", opts.Count))

	for i := 0; i < opts.Count; i++ {
		w := &Worker{
			id:      fmt.Sprintf("worker-%d", i),
			manager: m,
		}
		m.wg.Add(1)
		go func(worker *Worker) {
			defer m.wg.Done()
			worker.Run(m.ctx)
		}(w)
	}

	return m
}

// Wake nudges an idle worker to check for requests immediately instead of
// waiting for the next poll tick. Safe to call from any goroutine; a no-op
// when every worker is busy.
func (m *Manager) Wake() {
	select {
	case m.wakeup <- struct{}{}:
	default:
	}
}

// Shutdown attempts a graceful shutdown: cancel context, then wait for
// workers up to timeout.
func (m *Manager) Shutdown(timeout time.Duration) {
	m.logger.Info("Shutdown requested, stopping workers")
	m.cancel()

	doneCh := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		m.logger.Info("All workers exited cleanly")
	case <-time.After(timeout):
		m.logger.Error("Shutdown timed out, some workers may still be running",
			zap.Duration("timeout", timeout))
	}
}
