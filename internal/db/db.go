package db

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"rankwatch/internal/models"
	"rankwatch/migrations"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// RunMigrations runs all embedded SQL migrations.
func (d *DB) RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.Pool.Close()
}

// SeedDevData creates a demo project with a few keywords and a funded balance
// for local development. Returns the seeded user ID.
func (d *DB) SeedDevData(ctx context.Context) (uuid.UUID, error) {
	userID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	var count int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return uuid.Nil, err
	}
	if count > 0 {
		return userID, nil
	}

	project := &models.Project{UserID: userID, Name: "Example", Domain: "example.com", Country: "us"}
	if err := d.CreateProject(ctx, project); err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed project: %w", err)
	}

	terms := []struct {
		term      string
		frequency string
	}{
		{"example domain", models.FrequencyDaily},
		{"example website", models.FrequencyWeekly},
		{"what is example.com", models.FrequencyManual},
	}
	for _, t := range terms {
		kw := &models.Keyword{
			ProjectID:         project.ID,
			Term:              t.term,
			Country:           project.Country,
			Device:            models.DeviceDesktop,
			TrackingFrequency: t.frequency,
		}
		if err := d.CreateKeyword(ctx, kw); err != nil {
			return uuid.Nil, fmt.Errorf("failed to seed keyword %s: %w", t.term, err)
		}
	}

	if _, err := d.ApplyCredit(ctx, userID, models.ActionRecharge, decimal.NewFromInt(5), map[string]any{"source": "dev_seed"}); err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed balance: %w", err)
	}

	return userID, nil
}
