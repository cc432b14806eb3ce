package db

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rankwatch/internal/models"
)

// CreateProject inserts a project.
func (d *DB) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO projects (user_id, name, domain, country, language)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return d.Pool.QueryRow(ctx, query,
		p.UserID,
		p.Name,
		p.Domain,
		strings.ToLower(p.Country),
		p.Language,
	).Scan(&p.ID, &p.CreatedAt)
}

// GetProjectByID retrieves a project by its UUID.
func (d *DB) GetProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		SELECT id, user_id, name, domain, country, language, created_at
		FROM projects WHERE id = $1
	`

	var p models.Project
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Domain,
		&p.Country,
		&p.Language,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}
