package models

import (
	"time"

	"github.com/google/uuid"
)

// Position sources.
const (
	SourceQueued = "queued"
	SourceLive   = "live"
)

// MaxCompetitors caps the competitor snapshot stored with each position.
const MaxCompetitors = 5

// KeywordPosition is an immutable rank snapshot. Position 0 means the
// project domain was not found within the search depth.
type KeywordPosition struct {
	ID          uuid.UUID `json:"id"`
	KeywordID   uuid.UUID `json:"keyword_id"`
	Position    int       `json:"position"`
	URL         *string   `json:"url"`
	Competitors []string  `json:"competitors"`
	Source      string    `json:"source"`
	CheckedAt   time.Time `json:"checked_at"`
}
