// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"rankwatch/internal/db"
	"rankwatch/internal/models"
)

// TestDB creates a test database connection and returns a cleanup function.
// Skips the test unless TEST_DATABASE_URL is set.
func TestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.New(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.RunMigrations(connString); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	cleanupTestData(ctx, database.Pool)

	cleanup := func() {
		cleanupTestData(ctx, database.Pool)
		database.Close()
	}

	return database, cleanup
}

// cleanupTestData removes all test data from the database.
func cleanupTestData(ctx context.Context, pool *pgxpool.Pool) {
	// Delete in order to respect foreign keys
	pool.Exec(ctx, "DELETE FROM keyword_positions")
	pool.Exec(ctx, "DELETE FROM keywords")
	pool.Exec(ctx, "DELETE FROM projects")
	pool.Exec(ctx, "DELETE FROM transactions")
	pool.Exec(ctx, "DELETE FROM user_balances")
}

// Price parses a decimal literal, failing the test on error.
func Price(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%q) error = %v", s, err)
	}
	return d
}

// SeedProject creates a project for userID with n manual keywords in store.
func SeedProject(t *testing.T, store *MemStore, userID uuid.UUID, domain string, n int) (*models.Project, []models.Keyword) {
	t.Helper()
	ctx := context.Background()

	project := &models.Project{UserID: userID, Name: domain, Domain: domain, Country: "us"}
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	keywords := make([]models.Keyword, 0, n)
	for i := 0; i < n; i++ {
		kw := &models.Keyword{
			ProjectID:         project.ID,
			Term:              domain + " term " + string(rune('a'+i)),
			Country:           "us",
			Device:            models.DeviceDesktop,
			TrackingFrequency: models.FrequencyManual,
		}
		if err := store.CreateKeyword(ctx, kw); err != nil {
			t.Fatalf("CreateKeyword() error = %v", err)
		}
		keywords = append(keywords, *kw)
	}
	return project, keywords
}

// Fund credits userID with amount as a recharge.
func Fund(t *testing.T, store *MemStore, userID uuid.UUID, amount string) {
	t.Helper()
	if _, err := store.ApplyCredit(context.Background(), userID, models.ActionRecharge, Price(t, amount), nil); err != nil {
		t.Fatalf("ApplyCredit() error = %v", err)
	}
}
