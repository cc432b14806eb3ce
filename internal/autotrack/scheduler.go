// Package autotrack schedules recurring rank checks for keywords on a
// daily, every-two-days or weekly cadence.
package autotrack

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/checks"
	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
)

// Store selects due keywords and reads balances.
type Store interface {
	ListDueKeywords(ctx context.Context, now time.Time, intervals map[string]time.Duration) ([]models.TrackedKeyword, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
}

// Enqueuer submits checks. Implemented by checks.Service.
type Enqueuer interface {
	Enqueue(ctx context.Context, req checks.Request) (*models.EnqueueResult, error)
}

// Notifier is told about users skipped for lack of funds.
type Notifier interface {
	NotifyLowBalance(ctx context.Context, balance *models.UserBalance, required decimal.Decimal, keywords int) bool
}

// Scheduler runs auto-tracking cycles.
type Scheduler struct {
	store     Store
	enqueuer  Enqueuer
	notifier  Notifier
	price     decimal.Decimal
	intervals map[string]time.Duration
	log       *slog.Logger
}

// New creates a Scheduler. notifier may be nil.
func New(store Store, enqueuer Enqueuer, notifier Notifier, price decimal.Decimal, intervals map[string]time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if intervals == nil {
		intervals = models.DefaultTierIntervals
	}
	return &Scheduler{
		store:     store,
		enqueuer:  enqueuer,
		notifier:  notifier,
		price:     price,
		intervals: intervals,
		log:       logger.With("component", "autotrack"),
	}
}

// RunCycle enqueues every keyword due at now. A user whose balance cannot
// cover all of their due keywords is skipped as a whole and notified.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) (*models.AutoTrackResult, error) {
	due, err := s.store.ListDueKeywords(ctx, now, s.intervals)
	if err != nil {
		return nil, err
	}

	result := &models.AutoTrackResult{Candidates: len(due), RanAt: now}

	byUser := make(map[uuid.UUID][]uuid.UUID)
	var order []uuid.UUID
	for _, kw := range due {
		if _, ok := byUser[kw.UserID]; !ok {
			order = append(order, kw.UserID)
		}
		byUser[kw.UserID] = append(byUser[kw.UserID], kw.ID)
	}

	for _, userID := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids := byUser[userID]
		log := s.log.With("user_id", userID, "keywords", len(ids))

		balance, err := s.store.GetBalance(ctx, userID)
		if err != nil {
			log.Error("failed to read balance", "error", err)
			result.UsersSkipped++
			metrics.RecordAutoTrackUser("error")
			continue
		}

		required := s.price.Mul(decimal.NewFromInt(int64(len(ids))))
		if !balance.Covers(required) {
			log.Info("skipping user with insufficient balance",
				"balance", balance.Balance.String(), "required", required.String())
			result.UsersSkipped++
			metrics.RecordAutoTrackUser("insufficient_funds")
			if s.notifier != nil {
				s.notifier.NotifyLowBalance(ctx, balance, required, len(ids))
			}
			continue
		}

		uid := userID
		res, err := s.enqueuer.Enqueue(ctx, checks.Request{
			Filter: models.KeywordFilter{UserID: &uid, IDs: ids},
			Origin: checks.OriginAutoTracking,
		})
		if err != nil {
			log.Error("auto-tracking enqueue failed", "error", err)
			result.UsersSkipped++
			metrics.RecordAutoTrackUser("error")
			continue
		}

		result.UsersProcessed++
		result.Enqueued += res.EnqueuedCount
		metrics.RecordAutoTrackUser("processed")
	}

	s.log.Info("auto-tracking cycle finished",
		"candidates", result.Candidates,
		"users_processed", result.UsersProcessed,
		"users_skipped", result.UsersSkipped,
		"enqueued", result.Enqueued,
	)
	return result, nil
}
