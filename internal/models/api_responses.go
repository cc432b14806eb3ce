package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Skip reasons reported per keyword when a requested check was not enqueued.
const (
	ReasonInsufficientFunds   = "insufficient_funds"
	ReasonProviderUnavailable = "provider_unavailable"
	ReasonProviderRejected    = "provider_rejected"
	ReasonLedgerError         = "ledger_error"
	ReasonPersistError        = "persist_error"
	ReasonAlreadyInFlight     = "already_in_flight"
	ReasonInvalidLocation     = "invalid_location"
	ReasonVolumeCached        = "volume_already_cached"
)

// EnqueueDiagnostics breaks down an enqueue run for observability.
type EnqueueDiagnostics struct {
	Requested         int `json:"requested,omitempty"`
	Found             int `json:"found"`
	Payable           int `json:"payable"`
	SkippedForBalance int `json:"skipped_for_balance"`
	SubmitFailed      int `json:"submit_failed"`
	Refunded          int `json:"refunded"`
	Errors            int `json:"errors"`
}

// SkippedKeyword names a keyword that was not enqueued and why.
type SkippedKeyword struct {
	KeywordID uuid.UUID `json:"keyword_id"`
	Reason    string    `json:"reason"`
}

// EnqueueResult is the caller-facing outcome of requestChecks.
type EnqueueResult struct {
	EnqueuedCount int                `json:"enqueued_count"`
	Diagnostics   EnqueueDiagnostics `json:"diagnostics"`
	Skipped       []SkippedKeyword   `json:"skipped,omitempty"`
}

// SyncResult is the caller-facing outcome of syncPending.
type SyncResult struct {
	Pending     int `json:"pending"`
	SyncedCount int `json:"synced_count"`
	Queued      int `json:"queued"`
	Failed      int `json:"failed"`
	Errors      int `json:"errors"`
}

// LiveCheckResult is returned by a synchronous live check.
type LiveCheckResult struct {
	Position       KeywordPosition `json:"position"`
	Throttled      bool            `json:"throttled"`
	HoursSinceLast *float64        `json:"hours_since_last,omitempty"`
}

// VolumeResult is returned by a search volume lookup.
type VolumeResult struct {
	KeywordID uuid.UUID        `json:"keyword_id"`
	Volume    int64            `json:"volume"`
	Cached    bool             `json:"cached"`
	Charged   *decimal.Decimal `json:"charged,omitempty"`
}

// AutoTrackResult summarises one auto-tracking cycle.
type AutoTrackResult struct {
	Candidates     int       `json:"candidates"`
	UsersProcessed int       `json:"users_processed"`
	UsersSkipped   int       `json:"users_skipped"`
	Enqueued       int       `json:"enqueued"`
	RanAt          time.Time `json:"ran_at"`
}
