package responseverifier

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors Verify reports to. The zero
// value is safe to use: every method is a no-op until the collectors are
// set, so callers that never call NewMetrics pay nothing.
type Metrics struct {
	total    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics builds the verification_total{version,result} counter and
// the verification_duration_seconds histogram, registering both against
// reg. Pass prometheus.NewRegistry() in tests to avoid the global
// DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_total",
			Help: "Count of Ic-Certificate verifications by algorithm version and outcome.",
		}, []string{"version", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "verification_duration_seconds",
			Help:    "Wall-clock time spent in Verify.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.total, m.duration)
	}
	return m
}

func (m *Metrics) observe(version int, result string, elapsed time.Duration) {
	if m == nil || m.total == nil {
		return
	}
	m.total.WithLabelValues(strconv.Itoa(version), result).Inc()
	m.duration.Observe(elapsed.Seconds())
}
