package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/core/services"
	"github.com/jakechorley/shiftsync/pkg/db"
)

// Worker polls the database for claimable shift requests and processes them
type Worker struct {
	id      string
	manager *Manager
}

// Run keeps claiming and processing requests until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	logger := w.manager.logger.With(zap.String("worker_id", w.id))
	logger.Info("Worker started")

	ticker := time.NewTicker(w.manager.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker context canceled, stopping")
			return
		case <-ticker.C:
		case <-w.manager.wakeup:
		}

		// Drain everything claimable before going back to sleep.
		for w.claimAndProcess(ctx, logger) {
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// claimAndProcess handles at most one request. It reports whether a request
// was claimed, so the caller can immediately look for another.
func (w *Worker) claimAndProcess(ctx context.Context, logger *zap.Logger) bool {
	lockUntil := time.Now().Add(w.manager.opts.LockTTL)
	request, err := w.manager.database.ClaimNextPendingRequest(ctx, w.id, lockUntil)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false
		}
		if ctx.Err() == nil {
			logger.Error("Failed to claim request", zap.Error(err))
		}
		return false
	}

	logger.Info("Claimed shift request",
		zap.String("request_id", request.ID),
		zap.Int("total_shifts", request.TotalShifts))

	start := time.Now()
	result, err := services.ProcessRequest(ctx, w.manager.database, w.manager.client, logger, w.manager.opts.Process, request.ID)
	if err != nil {
		// Release and stop draining: retrying a persistently failing request
		// waits for the next poll tick instead of spinning on it.
		w.release(logger, request.ID, err)
		return false
	}

	logger.Info("Request processed",
		zap.String("request_id", request.ID),
		zap.String("status", string(result.Status)),
		zap.Duration("elapsed", time.Since(start)))

	return true
}

// release puts an unfinished request back to pending so another worker (or
// this one, later) can resume it. Uses a fresh context because the worker's
// own context may already be canceled.
func (w *Worker) release(logger *zap.Logger, requestID string, cause error) {
	logger.Warn("Releasing unfinished request",
		zap.String("request_id", requestID),
		zap.Error(cause))

	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.manager.database.ReleaseRequest(releaseCtx, requestID); err != nil {
		logger.Error("Failed to release request",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
