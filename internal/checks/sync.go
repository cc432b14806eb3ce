package checks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
	"rankwatch/internal/provider"
)

type syncOutcome int

const (
	outcomeQueued syncOutcome = iota
	outcomeSynced
	outcomeFailed
	outcomeError
	outcomeRaced // resolved by an overlapping run
)

// SyncPending polls every in-flight task and resolves finished ones.
// Overlapping runs are safe: each task is resolved at most once.
func (s *Service) SyncPending(ctx context.Context) (*models.SyncResult, error) {
	pending, err := s.store.ListPendingKeywords(ctx, s.opts.SyncBatch)
	if err != nil {
		return nil, err
	}

	result := &models.SyncResult{Pending: len(pending)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.opts.SyncConcurrency)
	for i := range pending {
		kw := &pending[i]
		g.Go(func() error {
			outcome := s.syncOne(ctx, kw)
			mu.Lock()
			tally(result, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if result.Pending > 0 {
		s.log.Info("sync run finished",
			"pending", result.Pending,
			"synced", result.SyncedCount,
			"queued", result.Queued,
			"failed", result.Failed,
			"errors", result.Errors,
		)
	}
	return result, nil
}

// SyncKeyword polls a single keyword. A keyword without an in-flight task is
// a no-op.
func (s *Service) SyncKeyword(ctx context.Context, keywordID uuid.UUID) (*models.SyncResult, error) {
	kw, err := s.store.GetTrackedKeyword(ctx, keywordID)
	if err != nil {
		return nil, err
	}

	result := &models.SyncResult{}
	if !kw.InFlight() {
		return result, nil
	}
	result.Pending = 1
	tally(result, s.syncOne(ctx, kw))
	return result, nil
}

func tally(r *models.SyncResult, o syncOutcome) {
	switch o {
	case outcomeQueued:
		r.Queued++
	case outcomeSynced:
		r.SyncedCount++
	case outcomeFailed:
		r.Failed++
	case outcomeError:
		r.Errors++
	}
}

// syncOne polls one task. Transport errors leave the correlation ID in place
// so the task is retried on the next run.
func (s *Service) syncOne(ctx context.Context, kw *models.TrackedKeyword) syncOutcome {
	correlationID := *kw.CorrelationID
	log := s.log.With("keyword_id", kw.ID, "correlation_id", correlationID)

	start := time.Now()
	status, err := s.provider.TaskStatus(ctx, correlationID)
	metrics.ObserveProvider("task_get", start, err)
	switch {
	case errors.Is(err, provider.ErrMalformedResponse):
		log.Warn("malformed task response, recording as not found", "error", err)
		status = &provider.TaskStatus{State: provider.StateDone}
	case err != nil:
		log.Warn("task poll failed", "error", err)
		return outcomeError
	}

	switch status.State {
	case provider.StateQueued:
		return outcomeQueued
	case provider.StateFailed:
		return s.abandon(ctx, kw, correlationID, status.Message)
	}

	pos := BuildPosition(kw.ProjectDomain, status.Results, models.SourceQueued, s.now())
	resolved, err := s.store.ResolveKeyword(ctx, kw.ID, correlationID, pos)
	if err != nil {
		log.Error("failed to record position", "error", err)
		return outcomeError
	}
	if !resolved {
		log.Debug("task already resolved")
		return outcomeRaced
	}

	metrics.RecordPosition(models.SourceQueued, pos.Position)
	log.Debug("task resolved", "position", pos.Position)
	return outcomeSynced
}

// abandon clears a permanently failed task and refunds the debit that paid
// for it.
func (s *Service) abandon(ctx context.Context, kw *models.TrackedKeyword, correlationID, message string) syncOutcome {
	log := s.log.With("keyword_id", kw.ID, "correlation_id", correlationID)

	cleared, err := s.store.AbandonTask(ctx, kw.ID, correlationID)
	if err != nil {
		log.Error("failed to clear failed task", "error", err)
		return outcomeError
	}
	if !cleared {
		return outcomeRaced
	}
	log.Warn("provider task failed", "message", message)

	if kw.DebitID == nil {
		log.Warn("failed task has no recorded debit, nothing to refund")
		return outcomeFailed
	}
	extra := map[string]any{"correlation_id": correlationID}
	if _, err := s.ledger.RefundTransaction(context.WithoutCancel(ctx), *kw.DebitID, "provider_task_failed", extra); err != nil {
		log.Error("refund for failed task failed", "transaction_id", *kw.DebitID, "error", err)
	}
	return outcomeFailed
}
