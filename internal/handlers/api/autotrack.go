package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"rankwatch/internal/models"
)

// CycleRunner runs one auto-tracking cycle. Implemented by autotrack.Scheduler.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (*models.AutoTrackResult, error)
}

// AutoTrackHandler triggers auto-tracking on demand.
type AutoTrackHandler struct {
	runner CycleRunner
}

// NewAutoTrackHandler creates a new API auto-tracking handler.
func NewAutoTrackHandler(runner CycleRunner) *AutoTrackHandler {
	return &AutoTrackHandler{runner: runner}
}

// Run executes a cycle immediately.
func (h *AutoTrackHandler) Run(c fiber.Ctx) error {
	result, err := h.runner.RunCycle(c.Context(), time.Now())
	if err != nil {
		return serviceError(c, err, "auto-tracking cycle failed")
	}
	return jsonSuccess(c, result)
}
