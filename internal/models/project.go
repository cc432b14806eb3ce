package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a monitored domain owned by a single user.
type Project struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Country   string    `json:"country"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
