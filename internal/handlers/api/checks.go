package api

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"rankwatch/internal/checks"
	"rankwatch/internal/models"
)

// CheckService runs paid rank checks. Implemented by checks.Service.
type CheckService interface {
	Enqueue(ctx context.Context, req checks.Request) (*models.EnqueueResult, error)
	SyncPending(ctx context.Context) (*models.SyncResult, error)
	SyncKeyword(ctx context.Context, keywordID uuid.UUID) (*models.SyncResult, error)
	LiveCheck(ctx context.Context, keywordID uuid.UUID) (*models.LiveCheckResult, error)
	LookupVolume(ctx context.Context, keywordID uuid.UUID) (*models.VolumeResult, error)
}

// CheckHandler exposes rank check operations via JSON API.
type CheckHandler struct {
	checks CheckService
}

// NewCheckHandler creates a new API check handler.
func NewCheckHandler(svc CheckService) *CheckHandler {
	return &CheckHandler{checks: svc}
}

type requestChecksBody struct {
	KeywordIDs []uuid.UUID `json:"keyword_ids"`
	ProjectID  *uuid.UUID  `json:"project_id"`
	UserID     *uuid.UUID  `json:"user_id"`
}

// Request enqueues manual rank checks for the keywords in scope.
func (h *CheckHandler) Request(c fiber.Ctx) error {
	var body requestChecksBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.checks.Enqueue(c.Context(), checks.Request{
		Filter: models.KeywordFilter{
			UserID:    body.UserID,
			ProjectID: body.ProjectID,
			IDs:       body.KeywordIDs,
		},
		Origin: checks.OriginManual,
	})
	if err != nil {
		return serviceError(c, err, "failed to enqueue checks")
	}
	return jsonSuccess(c, result)
}

// SyncPending polls the provider for every in-flight task.
func (h *CheckHandler) SyncPending(c fiber.Ctx) error {
	result, err := h.checks.SyncPending(c.Context())
	if err != nil {
		return serviceError(c, err, "failed to sync pending checks")
	}
	return jsonSuccess(c, result)
}

// SyncKeyword polls the provider for one keyword's in-flight task.
func (h *CheckHandler) SyncKeyword(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	result, err := h.checks.SyncKeyword(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "failed to sync keyword")
	}
	return jsonSuccess(c, result)
}

// LiveCheck runs a synchronous check for one keyword.
func (h *CheckHandler) LiveCheck(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	result, err := h.checks.LiveCheck(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "live check failed")
	}
	return jsonSuccess(c, result)
}

// Volume returns the search volume for a keyword, fetching it once.
func (h *CheckHandler) Volume(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	result, err := h.checks.LookupVolume(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "volume lookup failed")
	}
	return jsonSuccess(c, result)
}
