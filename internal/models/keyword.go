package models

import (
	"time"

	"github.com/google/uuid"
)

// Tracking frequency constants.
const (
	FrequencyManual     = "manual"
	FrequencyDaily      = "daily"
	FrequencyEvery2Days = "every_2_days"
	FrequencyWeekly     = "weekly"
)

// Device constants.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
)

// DefaultTierIntervals maps each auto-tracking tier to its cadence.
var DefaultTierIntervals = map[string]time.Duration{
	FrequencyDaily:      24 * time.Hour,
	FrequencyEvery2Days: 48 * time.Hour,
	FrequencyWeekly:     7 * 24 * time.Hour,
}

// IsValidFrequency reports whether f is a known tracking tier.
func IsValidFrequency(f string) bool {
	switch f {
	case FrequencyManual, FrequencyDaily, FrequencyEvery2Days, FrequencyWeekly:
		return true
	}
	return false
}

// Keyword is a search term tracked for a project.
type Keyword struct {
	ID                uuid.UUID  `json:"id"`
	ProjectID         uuid.UUID  `json:"project_id"`
	Term              string     `json:"term"`
	Country           string     `json:"country"`
	Device            string     `json:"device"`
	TrackingFrequency string     `json:"tracking_frequency"`
	LastAutoCheck     *time.Time `json:"last_auto_check"`
	LastLiveCheck     *time.Time `json:"last_live_check"`
	CorrelationID     *string    `json:"correlation_id"` // non-nil while a provider task is in flight
	SubmittedAt       *time.Time `json:"submitted_at"`
	DebitID           *uuid.UUID `json:"debit_transaction_id"` // ledger debit funding the in-flight task
	Volume            *int64     `json:"volume"`
	CreatedAt         time.Time  `json:"created_at"`
}

// InFlight reports whether a provider task is outstanding for the keyword.
func (k *Keyword) InFlight() bool {
	return k.CorrelationID != nil && *k.CorrelationID != ""
}

// TrackedKeyword is a keyword joined with the fields of its owning project
// that the check pipeline needs.
type TrackedKeyword struct {
	Keyword
	UserID        uuid.UUID `json:"user_id"`
	ProjectDomain string    `json:"project_domain"`
	Language      string    `json:"language,omitempty"`
}

// KeywordFilter scopes keyword selection. Nil / empty fields do not filter.
type KeywordFilter struct {
	UserID    *uuid.UUID
	ProjectID *uuid.UUID
	IDs       []uuid.UUID
}
