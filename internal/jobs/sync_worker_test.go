package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rankwatch/internal/models"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (s *countingSyncer) SyncPending(ctx context.Context) (*models.SyncResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &models.SyncResult{SyncedCount: 1}, nil
}

func TestSyncWorker_RunOnce(t *testing.T) {
	syncer := &countingSyncer{}
	w := NewSyncWorker(syncer, time.Minute, nil)

	result := w.runOnce(context.Background())
	if result == nil || result.SyncedCount != 1 {
		t.Errorf("runOnce() = %+v, want SyncedCount 1", result)
	}
}

func TestSyncWorker_RunOnceError(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("boom")}
	w := NewSyncWorker(syncer, time.Minute, nil)

	if result := w.runOnce(context.Background()); result != nil {
		t.Errorf("runOnce() = %+v, want nil on error", result)
	}
}

func TestSyncWorker_RunOnceCancelled(t *testing.T) {
	syncer := &countingSyncer{}
	w := NewSyncWorker(syncer, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.runOnce(ctx)
	if n := syncer.calls.Load(); n != 0 {
		t.Errorf("SyncPending called %d times after cancel, want 0", n)
	}
}

func TestSyncWorker_StartRunsImmediatelyAndStops(t *testing.T) {
	syncer := &countingSyncer{}
	w := NewSyncWorker(syncer, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for syncer.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("SyncPending calls = %d, want at least 2", syncer.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
