package api

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"rankwatch/internal/models"
)

const (
	defaultPositionLimit = 30
	maxPositionLimit     = 365
)

// KeywordStore reads keywords and their position history.
type KeywordStore interface {
	GetTrackedKeyword(ctx context.Context, id uuid.UUID) (*models.TrackedKeyword, error)
	UpdateTrackingFrequency(ctx context.Context, id uuid.UUID, frequency string) error
	ListPositions(ctx context.Context, keywordID uuid.UUID, limit int) ([]models.KeywordPosition, error)
}

// KeywordHandler handles keyword reads and tier changes via JSON API.
type KeywordHandler struct {
	store KeywordStore
}

// NewKeywordHandler creates a new API keyword handler.
func NewKeywordHandler(store KeywordStore) *KeywordHandler {
	return &KeywordHandler{store: store}
}

// Get returns a keyword with its project fields.
func (h *KeywordHandler) Get(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	kw, err := h.store.GetTrackedKeyword(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "failed to fetch keyword")
	}
	return jsonSuccess(c, kw)
}

// Positions returns the most recent position snapshots, newest first.
func (h *KeywordHandler) Positions(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	limit := defaultPositionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return jsonError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = min(n, maxPositionLimit)
	}

	if _, err := h.store.GetTrackedKeyword(c.Context(), id); err != nil {
		return serviceError(c, err, "failed to fetch keyword")
	}

	positions, err := h.store.ListPositions(c.Context(), id, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch positions")
	}
	if positions == nil {
		positions = []models.KeywordPosition{}
	}
	return jsonSuccess(c, positions)
}

// SetFrequency changes a keyword's auto-tracking tier.
func (h *KeywordHandler) SetFrequency(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	var body struct {
		TrackingFrequency string `json:"tracking_frequency"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !models.IsValidFrequency(body.TrackingFrequency) {
		return jsonError(c, fiber.StatusBadRequest, "invalid tracking_frequency")
	}

	if err := h.store.UpdateTrackingFrequency(c.Context(), id, body.TrackingFrequency); err != nil {
		return serviceError(c, err, "failed to update tracking frequency")
	}

	kw, err := h.store.GetTrackedKeyword(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "failed to fetch keyword")
	}
	return jsonSuccess(c, kw)
}
