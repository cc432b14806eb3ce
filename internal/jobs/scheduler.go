package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rankwatch/internal/autotrack"
)

// Job is a named unit of scheduled work.
type Job struct {
	Name    string
	Spec    string // cron expression or descriptor such as "@hourly"
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs cron jobs. A job that is still running when its next
// activation fires is skipped for that activation.
type Scheduler struct {
	mu      sync.Mutex
	c       *cron.Cron
	parser  cron.Parser
	base    context.Context
	entries map[string]cron.EntryID
	log     *slog.Logger
}

// NewScheduler creates a scheduler evaluating specs in UTC.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn))

	return &Scheduler{
		c: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		parser:  parser,
		base:    context.Background(),
		entries: make(map[string]cron.EntryID),
		log:     log,
	}
}

// Add registers job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if _, err := s.parser.Parse(job.Spec); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", job.Spec, job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[job.Name]; ok {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	id, err := s.c.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return err
	}
	s.entries[job.Name] = id
	s.log.Info("job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// Next returns the next activation time of a registered job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.c.Entry(id).Next
	return next, !next.IsZero()
}

// Start begins firing jobs. Job contexts derive from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.c.Start()
	s.log.Info("scheduler started", "jobs", len(s.entries))
}

// Stop prevents new activations and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return
	}
	s.log.Debug("job finished", "job", job.Name, "duration", time.Since(start))
}

// ClaimReleaser clears abandoned admission claims.
type ClaimReleaser interface {
	ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error)
}

// ReleaseStaleClaimsJob returns a job body that clears claims older than ttl.
func ReleaseStaleClaimsJob(store ClaimReleaser, ttl time.Duration, logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := store.ReleaseStaleClaims(ctx, time.Now().Add(-ttl))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Warn("released stale keyword claims", "count", n)
		}
		return nil
	}
}

// AutoTrackJob returns a job body that runs one auto-tracking cycle.
func AutoTrackJob(sched *autotrack.Scheduler) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := sched.RunCycle(ctx, time.Now())
		return err
	}
}
