package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
)

// LookupVolume returns the monthly search volume of a keyword. A cached value
// is returned free of charge; otherwise the lookup is debited, fetched and
// cached permanently.
func (s *Service) LookupVolume(ctx context.Context, keywordID uuid.UUID) (*models.VolumeResult, error) {
	kw, err := s.store.GetTrackedKeyword(ctx, keywordID)
	if err != nil {
		return nil, err
	}
	if kw.Volume != nil {
		return &models.VolumeResult{KeywordID: kw.ID, Volume: *kw.Volume, Cached: true}, nil
	}

	params, err := s.locs.Resolve(kw.Country, kw.Device, kw.Language)
	if err != nil {
		return nil, err
	}

	debit, err := s.ledger.Debit(ctx, kw.UserID, models.ActionVolumeLookup, s.opts.Pricing.VolumeLookup, chargeMetadata(kw, "volume"))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	volume, err := s.provider.SearchVolume(ctx, kw.Term, params.LocationCode, params.Language)
	metrics.ObserveProvider("search_volume", start, err)
	if err != nil {
		s.refund(ctx, debit, models.ReasonProviderUnavailable, nil)
		return nil, fmt.Errorf("volume lookup: %w", err)
	}

	stored, err := s.store.SetKeywordVolume(ctx, kw.ID, volume)
	if err != nil {
		s.log.Error("failed to cache search volume", "keyword_id", kw.ID, "error", err)
	} else if !stored && s.refund(ctx, debit, models.ReasonVolumeCached, nil) {
		// A concurrent lookup cached first; serve its value.
		if cur, err := s.store.GetTrackedKeyword(ctx, kw.ID); err == nil && cur.Volume != nil {
			volume = *cur.Volume
		}
		return &models.VolumeResult{KeywordID: kw.ID, Volume: volume, Cached: true}, nil
	}

	charged := debit.Amount
	return &models.VolumeResult{KeywordID: kw.ID, Volume: volume, Charged: &charged}, nil
}
