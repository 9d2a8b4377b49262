package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module wires telemetry components via Fx.
var Module = fx.Module("telemetry",
	fx.Provide(NewMetrics),
)

// Metrics exposes Prometheus observability primitives for the polling
// pipeline.
type Metrics struct {
	polls         *prometheus.CounterVec
	snapshots     prometheus.Counter
	alertsFired   prometheus.Counter
	notifications *prometheus.CounterVec
	pollDuration  *prometheus.HistogramVec
}

// NewMetrics registers and returns Prometheus metrics.
func NewMetrics() *Metrics {
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_polls_total",
		Help: "Counts poll attempts by outcome.",
	}, []string{"outcome"})

	snapshots := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beacon_snapshots_written_total",
		Help: "Counts metric snapshots persisted.",
	})

	alertsFired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beacon_alerts_fired_total",
		Help: "Counts alert events recorded.",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_notifications_total",
		Help: "Counts notification deliveries by result.",
	}, []string{"result"})

	pollDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beacon_poll_duration_seconds",
		Help:    "Poll latency per provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	prometheus.MustRegister(polls, snapshots, alertsFired, notifications, pollDuration)

	return &Metrics{
		polls:         polls,
		snapshots:     snapshots,
		alertsFired:   alertsFired,
		notifications: notifications,
		pollDuration:  pollDuration,
	}
}

// RecordPoll increments the poll counter for one outcome.
func (m *Metrics) RecordPoll(outcome string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(outcome).Inc()
}

// RecordSnapshots adds persisted snapshot rows.
func (m *Metrics) RecordSnapshots(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.snapshots.Add(float64(n))
}

// RecordAlertFired increments the fired-alert counter.
func (m *Metrics) RecordAlertFired() {
	if m == nil {
		return
	}
	m.alertsFired.Inc()
}

// RecordNotification increments the notification counter for one result.
func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// ObservePollDuration records the wall time of one provider poll.
func (m *Metrics) ObservePollDuration(providerID string, seconds float64) {
	if m == nil {
		return
	}
	m.pollDuration.WithLabelValues(providerID).Observe(seconds)
}
