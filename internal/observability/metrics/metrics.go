package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking engine.
type SchedulingMetrics struct {
	appointmentsTotal *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	slotConflicts     prometheus.Counter
	freeSlotLatency   prometheus.Histogram
	slotCacheTotal    *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		appointmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docktorek",
			Subsystem: "scheduling",
			Name:      "appointments_total",
			Help:      "Total appointment operations by outcome",
		}, []string{"operation", "status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docktorek",
			Subsystem: "scheduling",
			Name:      "status_transitions_total",
			Help:      "Total appointment status transitions",
		}, []string{"from", "to"}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docktorek",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Total bookings rejected for overlapping an existing appointment",
		}),
		freeSlotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docktorek",
			Subsystem: "scheduling",
			Name:      "free_slot_lookup_seconds",
			Help:      "Latency of free slot computation",
			Buckets:   prometheus.DefBuckets,
		}),
		slotCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docktorek",
			Subsystem: "scheduling",
			Name:      "slot_cache_total",
			Help:      "Free slot cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.appointmentsTotal, m.transitionsTotal, m.slotConflicts, m.freeSlotLatency, m.slotCacheTotal)
	return m
}

func (m *SchedulingMetrics) ObserveAppointment(operation, status string) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues(operation, status).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *SchedulingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *SchedulingMetrics) ObserveFreeSlotLatency(seconds float64) {
	if m == nil {
		return
	}
	m.freeSlotLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSlotCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.slotCacheTotal.WithLabelValues(result).Inc()
}
