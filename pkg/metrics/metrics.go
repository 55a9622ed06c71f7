package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics. Collectors are created unregistered
// so tests can construct as many instances as they like; main registers the
// one live instance via Register.
type Metrics struct {
	// Billing engine
	VisitsCompleted        prometheus.Counter
	PaymentsTotal          *prometheus.CounterVec
	AppointmentsCancelled  prometheus.Counter
	BillsVoided            prometheus.Counter
	BillMatches            *prometheus.CounterVec
	ConflictRetries        prometheus.Counter
	EngineOperationLatency *prometheus.HistogramVec

	// Sweeper
	BillsSwept prometheus.Counter

	// Outbox
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
}

func New(namespace string) *Metrics {
	return &Metrics{
		VisitsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_completed_total",
			Help:      "Total number of completed visits (bills issued)",
		}),
		PaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Total number of successful bill payments",
		}, []string{"method"}),
		AppointmentsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_cancelled_total",
			Help:      "Total number of cancelled appointments",
		}),
		BillsVoided: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_voided_total",
			Help:      "Total number of unpaid bills voided by id",
		}),
		BillMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_matches_total",
			Help:      "Bill-to-appointment matches by tier",
		}, []string{"tier"}),
		ConflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_conflict_retries_total",
			Help:      "Engine operations retried after a write conflict",
		}),
		EngineOperationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_operation_duration_seconds",
			Help:      "Duration of billing engine operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		BillsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_swept_total",
			Help:      "Stale unpaid bills removed by the sweeper",
		}),
		OutboxEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that failed publishing",
		}),
		OutboxProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox batches",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.VisitsCompleted,
		m.PaymentsTotal,
		m.AppointmentsCancelled,
		m.BillsVoided,
		m.BillMatches,
		m.ConflictRetries,
		m.EngineOperationLatency,
		m.BillsSwept,
		m.OutboxEventsProcessed,
		m.OutboxEventsFailed,
		m.OutboxProcessingLatency,
	)
}
