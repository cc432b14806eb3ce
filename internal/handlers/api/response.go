package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"rankwatch/internal/billing"
	"rankwatch/internal/checks"
	"rankwatch/internal/db"
	"rankwatch/internal/locations"
	"rankwatch/internal/provider"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// serviceError maps domain errors to HTTP responses. Unknown errors become a
// 500 carrying fallback so raw error text never reaches the caller.
func serviceError(c fiber.Ctx, err error, fallback string) error {
	var throttled *checks.ThrottledError
	switch {
	case errors.As(err, &throttled):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"status":           "error",
			"error":            "live check requested too soon",
			"hours_since_last": throttled.HoursSinceLast,
		})
	case errors.Is(err, db.ErrKeywordNotFound):
		return jsonError(c, fiber.StatusNotFound, "keyword not found")
	case errors.Is(err, db.ErrProjectNotFound):
		return jsonError(c, fiber.StatusNotFound, "project not found")
	case errors.Is(err, checks.ErrKeywordInFlight):
		return jsonError(c, fiber.StatusConflict, "keyword has a check in progress")
	case errors.Is(err, db.ErrDuplicateKeyword):
		return jsonError(c, fiber.StatusConflict, "keyword already tracked for this project")
	case errors.Is(err, billing.ErrInsufficientFunds):
		return jsonError(c, fiber.StatusPaymentRequired, "insufficient funds")
	case errors.Is(err, billing.ErrInvalidAmount):
		return jsonError(c, fiber.StatusBadRequest, "amount must be positive")
	case errors.Is(err, checks.ErrEmptyScope):
		return jsonError(c, fiber.StatusBadRequest, "keyword_ids, project_id or user_id is required")
	case errors.Is(err, locations.ErrUnknownCountry):
		return jsonError(c, fiber.StatusUnprocessableEntity, "unsupported country")
	case errors.Is(err, locations.ErrUnknownDevice):
		return jsonError(c, fiber.StatusUnprocessableEntity, "unsupported device")
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, provider.ErrRejected):
		return jsonError(c, fiber.StatusBadGateway, "ranking provider unavailable")
	}
	return jsonError(c, fiber.StatusInternalServerError, fallback)
}
