// Package checks runs metered rank checks: it admits keywords into the
// provider queue, resolves finished tasks into position snapshots, and serves
// synchronous live checks and volume lookups.
package checks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/config"
	"rankwatch/internal/locations"
	"rankwatch/internal/models"
	"rankwatch/internal/provider"
)

// Request origins.
const (
	OriginManual       = "manual"
	OriginAutoTracking = "auto_tracking"
)

// Store is the persistence the check pipeline needs.
type Store interface {
	GetTrackedKeyword(ctx context.Context, id uuid.UUID) (*models.TrackedKeyword, error)
	ClaimKeywords(ctx context.Context, filter models.KeywordFilter, token uuid.UUID, staleBefore time.Time) ([]models.TrackedKeyword, error)
	ReleaseClaims(ctx context.Context, token uuid.UUID, ids []uuid.UUID) error
	MarkSubmitted(ctx context.Context, token, keywordID uuid.UUID, correlationID string, debitID uuid.UUID, submittedAt time.Time, autoCheck bool) error
	ListPendingKeywords(ctx context.Context, limit int) ([]models.TrackedKeyword, error)
	ResolveKeyword(ctx context.Context, keywordID uuid.UUID, correlationID string, pos *models.KeywordPosition) (bool, error)
	AbandonTask(ctx context.Context, keywordID uuid.UUID, correlationID string) (bool, error)
	RecordLiveCheck(ctx context.Context, token, keywordID uuid.UUID, pos *models.KeywordPosition) error
	SetKeywordVolume(ctx context.Context, id uuid.UUID, volume int64) (bool, error)
}

// Ledger charges and compensates users. Implemented by billing.Ledger.
type Ledger interface {
	Debit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error)
	Refund(ctx context.Context, debit *models.Transaction, reason string, extra map[string]any) (*models.Transaction, error)
	RefundTransaction(ctx context.Context, id uuid.UUID, reason string, extra map[string]any) (*models.Transaction, error)
}

// Provider is the ranking provider. Implemented by provider.Client.
type Provider interface {
	MaxBatch() int
	SubmitBatch(ctx context.Context, items []provider.TaskItem) (map[string]string, error)
	TaskStatus(ctx context.Context, correlationID string) (*provider.TaskStatus, error)
	LiveCheck(ctx context.Context, item provider.TaskItem) (*provider.TaskStatus, error)
	SearchVolume(ctx context.Context, term string, locationCode int, language string) (int64, error)
}

// Options tunes the pipeline.
type Options struct {
	Pricing             config.Pricing
	ClaimTTL            time.Duration
	EnqueueConcurrency  int
	SyncConcurrency     int
	SyncBatch           int
	LiveMinInterval     time.Duration
	EnforceLiveInterval bool
	Clock               func() time.Time
}

// OptionsFromConfig maps application config onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Pricing:             cfg.Pricing,
		ClaimTTL:            cfg.ClaimTTL,
		EnqueueConcurrency:  cfg.EnqueueConcurrency,
		SyncConcurrency:     cfg.SyncConcurrency,
		LiveMinInterval:     cfg.LiveCheckMinInterval,
		EnforceLiveInterval: cfg.EnforceLiveInterval(),
	}
}

// Service is the rank-check pipeline.
type Service struct {
	store    Store
	ledger   Ledger
	provider Provider
	locs     *locations.Table
	opts     Options
	log      *slog.Logger
}

// New creates a Service.
func New(store Store, ledger Ledger, prov Provider, locs *locations.Table, opts Options, logger *slog.Logger) *Service {
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 10 * time.Minute
	}
	if opts.EnqueueConcurrency <= 0 {
		opts.EnqueueConcurrency = 4
	}
	if opts.SyncConcurrency <= 0 {
		opts.SyncConcurrency = 8
	}
	if opts.SyncBatch <= 0 {
		opts.SyncBatch = 1000
	}
	if opts.LiveMinInterval <= 0 {
		opts.LiveMinInterval = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if locs == nil {
		locs = locations.NewTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		ledger:   ledger,
		provider: prov,
		locs:     locs,
		opts:     opts,
		log:      logger.With("component", "checks"),
	}
}

func (s *Service) now() time.Time {
	return s.opts.Clock()
}

// taskItem builds the provider request for a keyword.
func (s *Service) taskItem(kw *models.TrackedKeyword) (provider.TaskItem, error) {
	params, err := s.locs.Resolve(kw.Country, kw.Device, kw.Language)
	if err != nil {
		return provider.TaskItem{}, err
	}
	return provider.TaskItem{
		Tag:          kw.ID.String(),
		Term:         kw.Term,
		LocationCode: params.LocationCode,
		Language:     params.Language,
		Device:       params.Device,
	}, nil
}

// refund compensates debit and logs on failure. Runs detached from ctx
// cancellation so compensation is not lost with the request.
func (s *Service) refund(ctx context.Context, debit *models.Transaction, reason string, extra map[string]any) bool {
	if _, err := s.ledger.Refund(context.WithoutCancel(ctx), debit, reason, extra); err != nil {
		s.log.Error("refund failed", "transaction_id", debit.ID, "user_id", debit.UserID, "reason", reason, "error", err)
		return false
	}
	return true
}

func chargeMetadata(kw *models.TrackedKeyword, origin string) map[string]any {
	return map[string]any{
		"keyword_id": kw.ID.String(),
		"project_id": kw.ProjectID.String(),
		"origin":     origin,
	}
}
