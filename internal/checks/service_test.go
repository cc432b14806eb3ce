package checks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/billing"
	"rankwatch/internal/config"
	"rankwatch/internal/models"
	"rankwatch/internal/testutil"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *testutil.MemStore
	provider *testutil.FakeProvider
	ledger   *billing.Ledger
}

func testPricing() config.Pricing {
	return config.Pricing{
		RankCheck:    decimal.RequireFromString("0.05"),
		AutoTracking: decimal.RequireFromString("0.04"),
		LiveCheck:    decimal.RequireFromString("0.20"),
		VolumeLookup: decimal.RequireFromString("0.01"),
	}
}

func newFixture(t *testing.T, maxBatch int, mutate ...func(*Options)) *fixture {
	t.Helper()

	clock := func() time.Time { return testNow }
	store := testutil.NewMemStore()
	store.SetClock(clock)
	prov := testutil.NewFakeProvider(maxBatch)
	ledger := billing.New(store, nil)

	opts := Options{
		Pricing:             testPricing(),
		EnforceLiveInterval: true,
		Clock:               clock,
	}
	for _, m := range mutate {
		m(&opts)
	}

	return &fixture{
		svc:      New(store, ledger, prov, nil, opts, nil),
		store:    store,
		provider: prov,
		ledger:   ledger,
	}
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	b, err := f.store.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	return b.Balance
}

func countTransactions(txs []models.Transaction, typ, action string) int {
	n := 0
	for _, tx := range txs {
		if tx.Type == typ && (action == "" || tx.Action == action) {
			n++
		}
	}
	return n
}

func keywordIDs(kws []models.Keyword) []uuid.UUID {
	ids := make([]uuid.UUID, len(kws))
	for i, k := range kws {
		ids[i] = k.ID
	}
	return ids
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Pricing:              testPricing(),
		ClaimTTL:             5 * time.Minute,
		EnqueueConcurrency:   3,
		SyncConcurrency:      6,
		LiveCheckMinInterval: 12 * time.Hour,
		LiveCheckPolicy:      config.LivePolicyWarn,
	}

	opts := OptionsFromConfig(cfg)
	if opts.EnforceLiveInterval {
		t.Error("EnforceLiveInterval = true, want false for warn policy")
	}
	if opts.ClaimTTL != 5*time.Minute || opts.EnqueueConcurrency != 3 || opts.SyncConcurrency != 6 {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
	if !opts.Pricing.RankCheck.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("RankCheck price = %s, want 0.05", opts.Pricing.RankCheck)
	}
}
