package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/autotrack"
	"rankwatch/internal/billing"
	"rankwatch/internal/checks"
	"rankwatch/internal/config"
	"rankwatch/internal/models"
	"rankwatch/internal/testutil"
)

func TestScheduler_Add(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{"hourly descriptor", "@hourly", false},
		{"every", "@every 5m", false},
		{"five fields", "15 * * * *", false},
		{"seconds field rejected", "0 15 * * * *", true},
		{"garbage", "not a schedule", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(nil)
			err := s.Add(Job{Name: "job", Spec: tt.spec, Run: noop})
			if (err != nil) != tt.wantErr {
				t.Errorf("Add(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_DuplicateName(t *testing.T) {
	s := NewScheduler(nil)
	noop := func(ctx context.Context) error { return nil }

	if err := s.Add(Job{Name: "a", Spec: "@hourly", Run: noop}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(Job{Name: "a", Spec: "@daily", Run: noop}); err == nil {
		t.Error("Add() with duplicate name succeeded, want error")
	}
}

func TestScheduler_Next(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Add(Job{Name: "a", Spec: "@hourly", Run: func(ctx context.Context) error { return nil }}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	next, ok := s.Next("a")
	if !ok {
		t.Fatal("Next() ok = false, want true")
	}
	if next.Minute() != 0 || !next.After(time.Now().Add(-time.Second)) {
		t.Errorf("Next() = %v, want the top of an upcoming hour", next)
	}
	if _, ok := s.Next("missing"); ok {
		t.Error("Next(missing) ok = true, want false")
	}
}

func TestScheduler_RunAppliesTimeout(t *testing.T) {
	s := NewScheduler(nil)
	var sawDeadline bool

	s.run(Job{Name: "t", Timeout: time.Second, Run: func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		return errors.New("logged, not returned")
	}})
	if !sawDeadline {
		t.Error("job context has no deadline, want Timeout applied")
	}
}

type staleReleaser struct {
	before time.Time
	n      int64
}

func (r *staleReleaser) ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error) {
	r.before = before
	return r.n, nil
}

func TestReleaseStaleClaimsJob(t *testing.T) {
	r := &staleReleaser{n: 3}
	run := ReleaseStaleClaimsJob(r, 10*time.Minute, slog.Default())

	start := time.Now()
	if err := run(context.Background()); err != nil {
		t.Fatalf("job error = %v", err)
	}
	want := start.Add(-10 * time.Minute)
	if d := r.before.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("before = %v, want about %v", r.before, want)
	}
}

func TestAutoTrackJob(t *testing.T) {
	store := testutil.NewMemStore()
	price := decimal.RequireFromString("0.05")
	svc := checks.New(store, billing.New(store, nil), testutil.NewFakeProvider(100), nil, checks.Options{
		Pricing: config.Pricing{AutoTracking: price, RankCheck: price},
	}, nil)
	sched := autotrack.New(store, svc, nil, price, nil, nil)

	user := uuid.New()
	testutil.Fund(t, store, user, "1.00")
	ctx := context.Background()
	project := &models.Project{UserID: user, Name: "p", Domain: "example.com", Country: "us"}
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	kw := &models.Keyword{ProjectID: project.ID, Term: "term", Country: "us", TrackingFrequency: models.FrequencyDaily}
	if err := store.CreateKeyword(ctx, kw); err != nil {
		t.Fatalf("CreateKeyword() error = %v", err)
	}

	if err := AutoTrackJob(sched)(ctx); err != nil {
		t.Fatalf("job error = %v", err)
	}
	if k, _ := store.Keyword(kw.ID); !k.InFlight() {
		t.Error("due keyword not in flight after auto-track job")
	}
}
