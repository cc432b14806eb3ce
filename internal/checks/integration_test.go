package checks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/billing"
	"rankwatch/internal/models"
	"rankwatch/internal/provider"
	"rankwatch/internal/testutil"
)

// TestPostgresEnqueueAndSync drives a paid enqueue and a sync against Postgres.
func TestPostgresEnqueueAndSync(t *testing.T) {
	database, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	prov := testutil.NewFakeProvider(100)
	ledger := billing.New(database, nil)
	svc := New(database, ledger, prov, nil, Options{Pricing: testPricing()}, nil)

	userID := uuid.New()
	if _, err := ledger.Credit(ctx, userID, models.ActionRecharge, decimal.RequireFromString("0.10"), nil); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	project := &models.Project{UserID: userID, Name: "Shop", Domain: "example.com", Country: "us"}
	if err := database.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	for _, term := range []string{"a", "b", "c", "d", "e"} {
		kw := &models.Keyword{ProjectID: project.ID, Term: term, Country: "us"}
		if err := database.CreateKeyword(ctx, kw); err != nil {
			t.Fatalf("CreateKeyword() error = %v", err)
		}
	}

	result, err := svc.Enqueue(ctx, Request{Filter: models.KeywordFilter{ProjectID: &project.ID}})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if result.EnqueuedCount != 2 || result.Diagnostics.SkippedForBalance != 3 {
		t.Errorf("Enqueue() = %+v, want 2 enqueued, 3 skipped for balance", result)
	}

	balance, err := ledger.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if !balance.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", balance.Balance)
	}

	// A second run finds nothing idle to pay for.
	again, err := svc.Enqueue(ctx, Request{Filter: models.KeywordFilter{ProjectID: &project.ID}})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if again.EnqueuedCount != 0 {
		t.Errorf("second Enqueue() enqueued %d, want 0", again.EnqueuedCount)
	}

	pending, err := database.ListPendingKeywords(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingKeywords() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	for _, kw := range pending {
		prov.SetStatus(*kw.CorrelationID, &provider.TaskStatus{
			State:   provider.StateDone,
			Results: []provider.OrganicResult{{Domain: "example.com", URL: "https://example.com/", RankGroup: 7}},
		})
	}

	synced, err := svc.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending() error = %v", err)
	}
	if synced.SyncedCount != 2 {
		t.Errorf("SyncPending() = %+v, want 2 synced", synced)
	}

	positions, err := database.ListPositions(ctx, pending[0].ID, 10)
	if err != nil {
		t.Fatalf("ListPositions() error = %v", err)
	}
	if len(positions) != 1 || positions[0].Position != 7 {
		t.Errorf("positions = %+v, want one at rank 7", positions)
	}

	// Overlapping run is a no-op.
	synced, err = svc.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending() error = %v", err)
	}
	if synced.Pending != 0 {
		t.Errorf("second SyncPending() pending = %d, want 0", synced.Pending)
	}
}
