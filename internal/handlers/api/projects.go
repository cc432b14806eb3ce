package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"rankwatch/internal/db"
	"rankwatch/internal/locations"
	"rankwatch/internal/models"
	"rankwatch/internal/validation"
)

// ProjectStore persists projects and their keywords.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	CreateKeyword(ctx context.Context, k *models.Keyword) error
}

// LocationResolver validates a country, device and language combination.
type LocationResolver interface {
	Resolve(country, device, language string) (locations.Params, error)
}

// ProjectHandler handles project and keyword creation via JSON API.
type ProjectHandler struct {
	store ProjectStore
	locs  LocationResolver
}

// NewProjectHandler creates a new API project handler.
func NewProjectHandler(store ProjectStore, locs LocationResolver) *ProjectHandler {
	return &ProjectHandler{store: store, locs: locs}
}

// Create creates a project for a user.
func (h *ProjectHandler) Create(c fiber.Ctx) error {
	var body struct {
		UserID   uuid.UUID `json:"user_id"`
		Name     string    `json:"name"`
		Domain   string    `json:"domain"`
		Country  string    `json:"country"`
		Language string    `json:"language"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if body.UserID == uuid.Nil {
		return jsonError(c, fiber.StatusBadRequest, "user_id is required")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return jsonError(c, fiber.StatusBadRequest, "name is required")
	}
	if valid, msg := validation.ValidateDomain(body.Domain); !valid {
		return jsonError(c, fiber.StatusBadRequest, msg)
	}
	country := strings.ToLower(strings.TrimSpace(body.Country))
	if _, err := h.locs.Resolve(country, "", body.Language); err != nil {
		return serviceError(c, err, "invalid location")
	}

	project := &models.Project{
		UserID:   body.UserID,
		Name:     name,
		Domain:   validation.NormalizeDomain(body.Domain),
		Country:  country,
		Language: strings.ToLower(strings.TrimSpace(body.Language)),
	}
	if err := h.store.CreateProject(c.Context(), project); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to create project")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "ok",
		"data":   project,
	})
}

// rejectedTerm reports a term that was not added.
type rejectedTerm struct {
	Term   string `json:"term"`
	Reason string `json:"reason"`
}

// AddKeywords adds search terms to a project. Terms that are invalid or
// already tracked are reported and do not fail the request.
func (h *ProjectHandler) AddKeywords(c fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid project id")
	}

	var body struct {
		Terms             []string `json:"terms"`
		Country           string   `json:"country"`
		Device            string   `json:"device"`
		TrackingFrequency string   `json:"tracking_frequency"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(body.Terms) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "terms is required")
	}

	frequency := body.TrackingFrequency
	if frequency == "" {
		frequency = models.FrequencyManual
	}
	if !models.IsValidFrequency(frequency) {
		return jsonError(c, fiber.StatusBadRequest, "invalid tracking_frequency")
	}

	project, err := h.store.GetProjectByID(c.Context(), projectID)
	if err != nil {
		return serviceError(c, err, "failed to fetch project")
	}

	country := strings.ToLower(strings.TrimSpace(body.Country))
	if country == "" {
		country = project.Country
	}
	params, err := h.locs.Resolve(country, body.Device, project.Language)
	if err != nil {
		return serviceError(c, err, "invalid location")
	}

	created := make([]models.Keyword, 0, len(body.Terms))
	var rejected []rejectedTerm
	for _, raw := range body.Terms {
		term := validation.NormalizeTerm(raw)
		if valid, msg := validation.ValidateTerm(term); !valid {
			rejected = append(rejected, rejectedTerm{Term: raw, Reason: msg})
			continue
		}

		kw := &models.Keyword{
			ProjectID:         project.ID,
			Term:              term,
			Country:           country,
			Device:            params.Device,
			TrackingFrequency: frequency,
		}
		if err := h.store.CreateKeyword(c.Context(), kw); err != nil {
			if errors.Is(err, db.ErrDuplicateKeyword) {
				rejected = append(rejected, rejectedTerm{Term: raw, Reason: "already tracked"})
				continue
			}
			return jsonError(c, fiber.StatusInternalServerError, "failed to create keyword")
		}
		created = append(created, *kw)
	}

	return jsonSuccess(c, fiber.Map{
		"keywords": created,
		"rejected": rejected,
	})
}
