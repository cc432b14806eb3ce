package checks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"rankwatch/internal/billing"
	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
	"rankwatch/internal/provider"
)

// Request scopes an enqueue run. At least one of the filter fields must be
// set.
type Request struct {
	Filter models.KeywordFilter
	Origin string
}

// charge is a keyword that has been paid for and awaits submission.
type charge struct {
	kw    models.TrackedKeyword
	item  provider.TaskItem
	debit *models.Transaction
}

// userRun accumulates the outcome of one user's share of a run.
type userRun struct {
	diag     models.EnqueueDiagnostics
	enqueued int
	skipped  []models.SkippedKeyword
	release  []uuid.UUID
}

func (r *userRun) skip(id uuid.UUID, reason string) {
	r.skipped = append(r.skipped, models.SkippedKeyword{KeywordID: id, Reason: reason})
	r.release = append(r.release, id)
	metrics.RecordSkipped(reason)
}

// Enqueue debits and submits rank checks for every idle keyword in scope.
// Keywords that cannot be paid for or submitted are reported in the result
// and left idle; money taken for a check that was not submitted is refunded.
func (s *Service) Enqueue(ctx context.Context, req Request) (*models.EnqueueResult, error) {
	f := req.Filter
	if f.UserID == nil && f.ProjectID == nil && len(f.IDs) == 0 {
		return nil, ErrEmptyScope
	}
	if req.Origin == "" {
		req.Origin = OriginManual
	}

	token := uuid.New()
	claimed, err := s.store.ClaimKeywords(ctx, f, token, s.now().Add(-s.opts.ClaimTTL))
	if err != nil {
		return nil, err
	}

	result := &models.EnqueueResult{
		Diagnostics: models.EnqueueDiagnostics{Requested: len(f.IDs), Found: len(claimed)},
	}

	if len(f.IDs) > 0 {
		found := make(map[uuid.UUID]bool, len(claimed))
		for _, kw := range claimed {
			found[kw.ID] = true
		}
		for _, id := range f.IDs {
			if !found[id] {
				result.Skipped = append(result.Skipped, models.SkippedKeyword{KeywordID: id, Reason: models.ReasonAlreadyInFlight})
			}
		}
	}

	groups, order := groupByUser(claimed)

	runs := make([]*userRun, len(order))
	var g errgroup.Group
	g.SetLimit(s.opts.EnqueueConcurrency)
	for i, userID := range order {
		keywords := groups[userID]
		g.Go(func() error {
			runs[i] = s.enqueueUser(ctx, token, req.Origin, keywords)
			return nil
		})
	}
	_ = g.Wait()

	for _, run := range runs {
		d := &result.Diagnostics
		d.Payable += run.diag.Payable
		d.SkippedForBalance += run.diag.SkippedForBalance
		d.SubmitFailed += run.diag.SubmitFailed
		d.Refunded += run.diag.Refunded
		d.Errors += run.diag.Errors
		result.EnqueuedCount += run.enqueued
		result.Skipped = append(result.Skipped, run.skipped...)
	}

	metrics.RecordEnqueued(req.Origin, result.EnqueuedCount)
	s.log.Info("enqueue run finished",
		"origin", req.Origin,
		"found", result.Diagnostics.Found,
		"enqueued", result.EnqueuedCount,
		"skipped_for_balance", result.Diagnostics.SkippedForBalance,
		"submit_failed", result.Diagnostics.SubmitFailed,
		"refunded", result.Diagnostics.Refunded,
	)
	return result, nil
}

func groupByUser(keywords []models.TrackedKeyword) (map[uuid.UUID][]models.TrackedKeyword, []uuid.UUID) {
	groups := make(map[uuid.UUID][]models.TrackedKeyword)
	var order []uuid.UUID
	for _, kw := range keywords {
		if _, ok := groups[kw.UserID]; !ok {
			order = append(order, kw.UserID)
		}
		groups[kw.UserID] = append(groups[kw.UserID], kw)
	}
	return groups, order
}

func (s *Service) actionFor(origin string) (string, decimal.Decimal) {
	if origin == OriginAutoTracking {
		return models.ActionAutoTrackingCheck, s.opts.Pricing.AutoTracking
	}
	return models.ActionRankCheck, s.opts.Pricing.RankCheck
}

// enqueueUser charges and submits one user's keywords. Claims on keywords
// that did not reach the provider are released before returning.
func (s *Service) enqueueUser(ctx context.Context, token uuid.UUID, origin string, keywords []models.TrackedKeyword) *userRun {
	run := &userRun{}
	action, price := s.actionFor(origin)
	log := s.log.With("user_id", keywords[0].UserID, "origin", origin)

	defer func() {
		if err := s.store.ReleaseClaims(context.WithoutCancel(ctx), token, run.release); err != nil {
			log.Error("failed to release claims", "count", len(run.release), "error", err)
		}
	}()

	var payable []charge
	for i := range keywords {
		kw := &keywords[i]

		item, err := s.taskItem(kw)
		if err != nil {
			log.Warn("cannot build provider request", "keyword_id", kw.ID, "error", err)
			run.skip(kw.ID, models.ReasonInvalidLocation)
			continue
		}

		debit, err := s.ledger.Debit(ctx, kw.UserID, action, price, chargeMetadata(kw, origin))
		if errors.Is(err, billing.ErrInsufficientFunds) {
			run.diag.SkippedForBalance++
			run.skip(kw.ID, models.ReasonInsufficientFunds)
			continue
		}
		if err != nil {
			run.diag.Errors++
			run.skip(kw.ID, models.ReasonLedgerError)
			continue
		}
		payable = append(payable, charge{kw: *kw, item: item, debit: debit})
	}
	run.diag.Payable = len(payable)

	batch := s.provider.MaxBatch()
	if batch <= 0 {
		batch = 100
	}
	for start := 0; start < len(payable); start += batch {
		end := min(start+batch, len(payable))
		s.submit(ctx, token, origin, payable[start:end], run)
	}
	return run
}

// submit sends one provider batch and records the correlation IDs.
func (s *Service) submit(ctx context.Context, token uuid.UUID, origin string, chunk []charge, run *userRun) {
	items := make([]provider.TaskItem, len(chunk))
	for i, c := range chunk {
		items[i] = c.item
	}

	start := time.Now()
	ids, err := s.provider.SubmitBatch(ctx, items)
	metrics.ObserveProvider("task_post", start, err)
	if err != nil {
		reason := models.ReasonProviderUnavailable
		if errors.Is(err, provider.ErrRejected) {
			reason = models.ReasonProviderRejected
		}
		s.log.Warn("batch submit failed", "size", len(chunk), "error", err)
		for _, c := range chunk {
			run.diag.SubmitFailed++
			s.compensate(ctx, c, reason, run)
		}
		return
	}

	submittedAt := s.now()
	for _, c := range chunk {
		correlationID, ok := ids[c.item.Tag]
		if !ok {
			run.diag.SubmitFailed++
			s.compensate(ctx, c, models.ReasonProviderRejected, run)
			continue
		}

		err := s.store.MarkSubmitted(ctx, token, c.kw.ID, correlationID, c.debit.ID, submittedAt, origin == OriginAutoTracking)
		if err != nil {
			s.log.Error("failed to persist correlation id",
				"keyword_id", c.kw.ID, "correlation_id", correlationID, "error", err)
			run.diag.Errors++
			s.compensate(ctx, c, models.ReasonPersistError, run)
			continue
		}
		run.enqueued++
	}
}

// compensate refunds a charge that did not turn into a tracked task.
func (s *Service) compensate(ctx context.Context, c charge, reason string, run *userRun) {
	if s.refund(ctx, c.debit, reason, nil) {
		run.diag.Refunded++
	} else {
		run.diag.Errors++
	}
	run.skip(c.kw.ID, reason)
}
