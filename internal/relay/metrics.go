package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the relay's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	processed   prometheus.Counter
	forwarded   *prometheus.CounterVec
	errors      *prometheus.CounterVec
	rateLimited prometheus.Counter
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relayctl",
			Name:      "replay_processed_total",
			Help:      "Message IDs evaluated by bulk replay runs.",
		}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayctl",
			Name:      "forwarded_total",
			Help:      "Messages relayed to the destination.",
		}, []string{"path", "category"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayctl",
			Name:      "errors_total",
			Help:      "Platform call failures, excluding rate limits.",
		}, []string{"path", "op"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relayctl",
			Name:      "rate_limited_total",
			Help:      "Rate-limit pauses taken by bulk replay runs.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayctl",
			Name:      "replay_runs_total",
			Help:      "Finished bulk replay runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relayctl",
			Name:      "replay_run_duration_seconds",
			Help:      "Wall time of bulk replay runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	reg.MustRegister(m.processed, m.forwarded, m.errors, m.rateLimited, m.runs, m.runDuration)
	return m
}

const (
	pathBulk = "bulk"
	pathLive = "live"
)

func (m *Metrics) incProcessed() {
	if m != nil {
		m.processed.Inc()
	}
}

func (m *Metrics) incForwarded(path string, c Category) {
	if m != nil {
		m.forwarded.WithLabelValues(path, string(c)).Inc()
	}
}

func (m *Metrics) incError(path, op string) {
	if m != nil {
		m.errors.WithLabelValues(path, op).Inc()
	}
}

func (m *Metrics) incRateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) observeRun(res Result) {
	if m == nil {
		return
	}
	outcome := string(StateComplete)
	if res.Aborted {
		outcome = string(StateAborted)
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(res.Duration.Seconds())
}
