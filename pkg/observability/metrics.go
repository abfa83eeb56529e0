package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of the function runtime.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	stateConflicts     *prometheus.CounterVec
	stateSetAttempts   *prometheus.HistogramVec
	stateGiveUps       *prometheus.CounterVec
	logFlushes         *prometheus.CounterVec
	logRecords         prometheus.Counter
	connections        prometheus.Gauge
}

// NewMetrics builds the collectors under the given metric namespace (e.g. "tendril").
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of invocations by outcome",
		}, []string{"outcome"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of handler invocations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		stateConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_conflicts_total",
			Help:      "Conditional writes rejected because of a version mismatch",
		}, []string{"scope"}),
		stateSetAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "state_set_attempts",
			Help:      "Read-modify-write attempts needed by a successful set",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}, []string{"scope"}),
		stateGiveUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_set_exhausted_total",
			Help:      "Set calls that gave up after the maximum number of attempts",
		}, []string{"scope"}),
		logFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_flushes_total",
			Help:      "Log uploads by result",
		}, []string{"result"}),
		logRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_records_total",
			Help:      "Log records shipped or dropped by flushes",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "HTTP connections currently open",
		}),
	}
}

// Collectors returns every collector, for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.invocations,
		m.invocationDuration,
		m.stateConflicts,
		m.stateSetAttempts,
		m.stateGiveUps,
		m.logFlushes,
		m.logRecords,
		m.connections,
	}
}

// Register registers all collectors with reg.
// Collectors that are already registered are ignored.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInvocation records one dispatched invocation.
func (m *Metrics) ObserveInvocation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome).Inc()
	m.invocationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveConflict records a rejected conditional write.
func (m *Metrics) ObserveConflict(scope string) {
	if m == nil {
		return
	}
	m.stateConflicts.WithLabelValues(scope).Inc()
}

// ObserveSet records the outcome of a read-modify-write loop.
func (m *Metrics) ObserveSet(scope string, attempts int, exhausted bool) {
	if m == nil {
		return
	}
	if exhausted {
		m.stateGiveUps.WithLabelValues(scope).Inc()
		return
	}
	m.stateSetAttempts.WithLabelValues(scope).Observe(float64(attempts))
}

// ObserveFlush records one log upload of n records.
func (m *Metrics) ObserveFlush(n int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.logFlushes.WithLabelValues(result).Inc()
	m.logRecords.Add(float64(n))
}

// SetConnections records the number of open HTTP connections.
func (m *Metrics) SetConnections(n int64) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}
