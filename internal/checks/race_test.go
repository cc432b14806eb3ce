package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"rankwatch/internal/models"
	"rankwatch/internal/testutil"
)

// hookStore runs a callback once, either right after a keyword is read or
// right before it is claimed.
type hookStore struct {
	*testutil.MemStore
	afterGet    func()
	beforeClaim func()
}

func (h *hookStore) GetTrackedKeyword(ctx context.Context, id uuid.UUID) (*models.TrackedKeyword, error) {
	kw, err := h.MemStore.GetTrackedKeyword(ctx, id)
	if fn := h.afterGet; fn != nil {
		h.afterGet = nil
		fn()
	}
	return kw, err
}

func (h *hookStore) ClaimKeywords(ctx context.Context, filter models.KeywordFilter, token uuid.UUID, staleBefore time.Time) ([]models.TrackedKeyword, error) {
	if fn := h.beforeClaim; fn != nil {
		h.beforeClaim = nil
		fn()
	}
	return h.MemStore.ClaimKeywords(ctx, filter, token, staleBefore)
}

func (f *fixture) hooked(t *testing.T, enforce bool) (*Service, *hookStore) {
	t.Helper()
	hs := &hookStore{MemStore: f.store}
	opts := Options{Pricing: testPricing(), EnforceLiveInterval: enforce, Clock: func() time.Time { return testNow }}
	return New(hs, f.ledger, f.provider, nil, opts, nil), hs
}

func TestLiveCheck_RechecksIntervalAfterClaim(t *testing.T) {
	f, user, kw := liveFixture(t, true)
	svc, hs := f.hooked(t, true)
	hs.beforeClaim = func() {
		if _, err := f.svc.LiveCheck(context.Background(), kw.ID); err != nil {
			t.Fatalf("concurrent LiveCheck() error = %v", err)
		}
	}

	_, err := svc.LiveCheck(context.Background(), kw.ID)
	var te *ThrottledError
	if !errors.As(err, &te) {
		t.Fatalf("LiveCheck() error = %v, want *ThrottledError", err)
	}
	if _, lives, _ := f.provider.Calls(); lives != 1 {
		t.Errorf("provider live calls = %d, want 1", lives)
	}
	if got := f.balance(t, user); !got.Equal(testutil.Price(t, "0.80")) {
		t.Errorf("balance = %s, want 0.80 (one debit)", got)
	}
	if f.store.Claimed(kw.ID) {
		t.Error("claim not released after throttled live check")
	}
}

func TestLiveCheck_RecheckFlagsUnderWarnPolicy(t *testing.T) {
	f, _, kw := liveFixture(t, false)
	svc, hs := f.hooked(t, false)
	hs.beforeClaim = func() {
		if _, err := f.svc.LiveCheck(context.Background(), kw.ID); err != nil {
			t.Fatalf("concurrent LiveCheck() error = %v", err)
		}
	}

	result, err := svc.LiveCheck(context.Background(), kw.ID)
	if err != nil {
		t.Fatalf("LiveCheck() error = %v", err)
	}
	if !result.Throttled || result.HoursSinceLast == nil {
		t.Errorf("result = %+v, want throttled flag with hours since last", result)
	}
}

func TestLookupVolume_ConcurrentLookupRefunded(t *testing.T) {
	f := newFixture(t, 100)
	user := uuid.New()
	testutil.Fund(t, f.store, user, "1.00")
	_, kws := testutil.SeedProject(t, f.store, user, "example.com", 1)
	f.provider.Volume = 1900

	svc, hs := f.hooked(t, true)
	hs.afterGet = func() {
		if _, err := f.svc.LookupVolume(context.Background(), kws[0].ID); err != nil {
			t.Fatalf("concurrent LookupVolume() error = %v", err)
		}
	}

	result, err := svc.LookupVolume(context.Background(), kws[0].ID)
	if err != nil {
		t.Fatalf("LookupVolume() error = %v", err)
	}
	if result.Volume != 1900 || !result.Cached || result.Charged != nil {
		t.Errorf("result = %+v, want free cached 1900", result)
	}
	if got := f.balance(t, user); !got.Equal(testutil.Price(t, "0.99")) {
		t.Errorf("balance = %s, want 0.99 (one net debit)", got)
	}
}
