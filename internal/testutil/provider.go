package testutil

import (
	"context"
	"fmt"
	"sync"

	"rankwatch/internal/provider"
)

// FakeProvider is a scriptable ranking provider. Submitted items get
// correlation IDs "task-<tag>"; task states are set per correlation ID.
type FakeProvider struct {
	mu sync.Mutex

	Batch int

	SubmitErr  error
	DropTags   map[string]bool // tags omitted from a successful submit response
	StatusErr  error
	LiveErr    error
	VolumeErr  error
	Volume     int64
	LiveResult *provider.TaskStatus

	statuses map[string]*provider.TaskStatus
	batches  [][]provider.TaskItem
	polls    int
	lives    int
	volumes  int
}

// NewFakeProvider returns a provider accepting batches of up to batch items.
func NewFakeProvider(batch int) *FakeProvider {
	return &FakeProvider{
		Batch:    batch,
		DropTags: make(map[string]bool),
		statuses: make(map[string]*provider.TaskStatus),
	}
}

// CorrelationID returns the ID the fake assigns to tag.
func CorrelationID(tag string) string {
	return "task-" + tag
}

// MaxBatch implements the provider contract.
func (f *FakeProvider) MaxBatch() int {
	return f.Batch
}

// SubmitBatch records the batch and returns IDs for every tag not dropped.
func (f *FakeProvider) SubmitBatch(ctx context.Context, items []provider.TaskItem) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(items) > f.Batch {
		return nil, fmt.Errorf("%w: batch of %d exceeds limit %d", provider.ErrRejected, len(items), f.Batch)
	}
	f.batches = append(f.batches, append([]provider.TaskItem(nil), items...))
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}

	ids := make(map[string]string, len(items))
	for _, it := range items {
		if f.DropTags[it.Tag] {
			continue
		}
		ids[it.Tag] = CorrelationID(it.Tag)
	}
	return ids, nil
}

// SetStatus scripts the status returned for correlationID.
func (f *FakeProvider) SetStatus(correlationID string, status *provider.TaskStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[correlationID] = status
}

// TaskStatus returns the scripted status, queued when none was set.
func (f *FakeProvider) TaskStatus(ctx context.Context, correlationID string) (*provider.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	if s, ok := f.statuses[correlationID]; ok {
		return s, nil
	}
	return &provider.TaskStatus{State: provider.StateQueued}, nil
}

// LiveCheck returns LiveResult or LiveErr.
func (f *FakeProvider) LiveCheck(ctx context.Context, item provider.TaskItem) (*provider.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lives++
	if f.LiveErr != nil {
		return nil, f.LiveErr
	}
	if f.LiveResult == nil {
		return &provider.TaskStatus{State: provider.StateDone}, nil
	}
	return f.LiveResult, nil
}

// SearchVolume returns Volume or VolumeErr.
func (f *FakeProvider) SearchVolume(ctx context.Context, term string, locationCode int, language string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.volumes++
	if f.VolumeErr != nil {
		return 0, f.VolumeErr
	}
	return f.Volume, nil
}

// Batches returns a copy of every submitted batch.
func (f *FakeProvider) Batches() [][]provider.TaskItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]provider.TaskItem(nil), f.batches...)
}

// Calls returns the number of poll, live and volume calls made.
func (f *FakeProvider) Calls() (polls, lives, volumes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls, f.lives, f.volumes
}
