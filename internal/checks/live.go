package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
	"rankwatch/internal/provider"
)

// LiveCheck runs a paid, synchronous check for one keyword, bypassing the
// provider queue. Checks younger than the minimum interval are refused with a
// *ThrottledError when the interval is enforced and flagged otherwise.
func (s *Service) LiveCheck(ctx context.Context, keywordID uuid.UUID) (*models.LiveCheckResult, error) {
	kw, err := s.store.GetTrackedKeyword(ctx, keywordID)
	if err != nil {
		return nil, err
	}
	if kw.InFlight() {
		return nil, ErrKeywordInFlight
	}

	now := s.now()
	result := &models.LiveCheckResult{}
	if err := s.checkLiveInterval(kw, now, result); err != nil {
		return nil, err
	}

	item, err := s.taskItem(kw)
	if err != nil {
		return nil, err
	}

	// The claim keeps the enqueuer and a concurrent live check off the keyword.
	token := uuid.New()
	claimed, err := s.store.ClaimKeywords(ctx, models.KeywordFilter{IDs: []uuid.UUID{kw.ID}}, token, now.Add(-s.opts.ClaimTTL))
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return nil, ErrKeywordInFlight
	}
	release := func() {
		if err := s.store.ReleaseClaims(context.WithoutCancel(ctx), token, []uuid.UUID{kw.ID}); err != nil {
			s.log.Error("failed to release live claim", "keyword_id", kw.ID, "error", err)
		}
	}

	// Another live check may have finished between the read and the claim.
	kw = &claimed[0]
	if err := s.checkLiveInterval(kw, now, result); err != nil {
		release()
		return nil, err
	}

	debit, err := s.ledger.Debit(ctx, kw.UserID, models.ActionLiveCheck, s.opts.Pricing.LiveCheck, chargeMetadata(kw, "live"))
	if err != nil {
		release()
		return nil, err
	}

	start := time.Now()
	status, err := s.provider.LiveCheck(ctx, item)
	metrics.ObserveProvider("live", start, err)
	switch {
	case errors.Is(err, provider.ErrMalformedResponse):
		s.log.Warn("malformed live response, recording as not found", "keyword_id", kw.ID, "error", err)
		status = &provider.TaskStatus{State: provider.StateDone}
	case err != nil:
		s.refund(ctx, debit, models.ReasonProviderUnavailable, nil)
		release()
		return nil, fmt.Errorf("live check: %w", err)
	}

	pos := BuildPosition(kw.ProjectDomain, status.Results, models.SourceLive, now)
	if err := s.store.RecordLiveCheck(ctx, token, kw.ID, pos); err != nil {
		s.refund(ctx, debit, models.ReasonPersistError, nil)
		release()
		return nil, fmt.Errorf("failed to record live check: %w", err)
	}

	metrics.RecordPosition(models.SourceLive, pos.Position)
	result.Position = *pos
	return result, nil
}

// checkLiveInterval compares the keyword's last live check with the minimum
// interval, filling result. Returns a *ThrottledError when enforced.
func (s *Service) checkLiveInterval(kw *models.TrackedKeyword, now time.Time, result *models.LiveCheckResult) error {
	if kw.LastLiveCheck == nil {
		return nil
	}
	elapsed := now.Sub(*kw.LastLiveCheck)
	hours := elapsed.Hours()
	result.HoursSinceLast = &hours
	if elapsed >= s.opts.LiveMinInterval {
		return nil
	}
	if s.opts.EnforceLiveInterval {
		metrics.RecordSkipped("live_throttled")
		return &ThrottledError{HoursSinceLast: hours}
	}
	if !result.Throttled {
		result.Throttled = true
		s.log.Warn("live check within minimum interval", "keyword_id", kw.ID, "hours_since_last", hours)
	}
	return nil
}
