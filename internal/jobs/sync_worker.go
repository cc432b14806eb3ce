package jobs

import (
	"context"
	"log/slog"
	"time"

	"rankwatch/internal/models"
)

// Syncer resolves in-flight provider tasks. Implemented by checks.Service.
type Syncer interface {
	SyncPending(ctx context.Context) (*models.SyncResult, error)
}

// SyncWorker polls the provider for finished tasks on a fixed interval.
type SyncWorker struct {
	syncer   Syncer
	interval time.Duration
	log      *slog.Logger
}

// NewSyncWorker creates a new sync worker.
func NewSyncWorker(syncer Syncer, interval time.Duration, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{
		syncer:   syncer,
		interval: interval,
		log:      logger.With("component", "sync_worker"),
	}
}

// Start runs the poll loop until ctx is cancelled.
func (w *SyncWorker) Start(ctx context.Context) {
	w.log.Info("sync worker started", "interval", w.interval)

	// Run immediately on start
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sync worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce performs one sync pass. Errors are logged; the next tick retries.
func (w *SyncWorker) runOnce(ctx context.Context) *models.SyncResult {
	if ctx.Err() != nil {
		return nil
	}
	result, err := w.syncer.SyncPending(ctx)
	if err != nil {
		w.log.Error("sync pass failed", "error", err)
		return nil
	}
	return result
}
