package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rankwatch/internal/models"
)

var (
	pendingTasksDesc = prometheus.NewDesc(
		"rankwatch_pending_tasks",
		"Keywords with an in-flight provider task by tracking tier",
		[]string{"tier"},
		nil,
	)

	checksEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_checks_enqueued_total",
		Help: "Rank checks submitted to the provider by origin",
	}, []string{"origin"})

	checksSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_checks_skipped_total",
		Help: "Requested rank checks that were not enqueued by reason",
	}, []string{"reason"})

	ledgerTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_ledger_transactions_total",
		Help: "Ledger transactions by type and action",
	}, []string{"type", "action"})

	ledgerAmount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_ledger_amount_total",
		Help: "Sum of ledger transaction amounts by type and action",
	}, []string{"type", "action"})

	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_provider_requests_total",
		Help: "Ranking provider calls by operation and outcome",
	}, []string{"operation", "outcome"})

	providerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rankwatch_provider_request_duration_seconds",
		Help:    "Ranking provider call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	positionsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_positions_recorded_total",
		Help: "Position snapshots written by source and whether the domain was found",
	}, []string{"source", "found"})

	autoTrackUsers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_autotrack_users_total",
		Help: "Users visited by the auto-tracking scheduler by outcome",
	}, []string{"outcome"})
)

// PendingCounter reports in-flight task counts.
type PendingCounter interface {
	CountPendingKeywords(ctx context.Context) (map[string]int, error)
}

// PendingCollector is a custom Prometheus collector that reads in-flight task
// counts from the database on each scrape.
type PendingCollector struct {
	store PendingCounter
}

// Describe sends the metric descriptor to the channel.
func (c *PendingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pendingTasksDesc
}

// Collect queries the store for pending tasks and emits them as gauges.
func (c *PendingCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.store.CountPendingKeywords(ctx)
	if err != nil {
		slog.Error("failed to collect pending task metrics", "error", err)
		return
	}
	for tier, n := range counts {
		ch <- prometheus.MustNewConstMetric(pendingTasksDesc, prometheus.GaugeValue, float64(n), tier)
	}
}

var registerOnce sync.Once

// Init registers all collectors with the default registry.
// Must be called once at startup.
func Init(store PendingCounter) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			checksEnqueued,
			checksSkipped,
			ledgerTransactions,
			ledgerAmount,
			providerRequests,
			providerLatency,
			positionsRecorded,
			autoTrackUsers,
			&PendingCollector{store: store},
		)
	})
}

// RecordEnqueued counts submitted checks.
func RecordEnqueued(origin string, n int) {
	if n > 0 {
		checksEnqueued.WithLabelValues(origin).Add(float64(n))
	}
}

// RecordSkipped counts checks dropped for reason.
func RecordSkipped(reason string) {
	checksSkipped.WithLabelValues(reason).Inc()
}

// RecordTransaction counts a committed ledger transaction.
func RecordTransaction(t *models.Transaction) {
	ledgerTransactions.WithLabelValues(t.Type, t.Action).Inc()
	ledgerAmount.WithLabelValues(t.Type, t.Action).Add(t.Amount.InexactFloat64())
}

// ObserveProvider records one provider call.
func ObserveProvider(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerRequests.WithLabelValues(operation, outcome).Inc()
	providerLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordPosition counts a stored position snapshot.
func RecordPosition(source string, position int) {
	found := "true"
	if position == 0 {
		found = "false"
	}
	positionsRecorded.WithLabelValues(source, found).Inc()
}

// RecordAutoTrackUser counts a scheduler decision for one user.
func RecordAutoTrackUser(outcome string) {
	autoTrackUsers.WithLabelValues(outcome).Inc()
}
