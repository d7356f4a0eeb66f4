package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cabana_reservations",
			Name:      "reservations_created_total",
			Help:      "Reservations created (pending).",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cabana_reservations",
			Name:      "transitions_total",
			Help:      "Status transitions by target status.",
		},
		[]string{"to_status"},
	)

	conflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cabana_reservations",
			Name:      "conflicts_total",
			Help:      "Booking attempts rejected by the conflict guard.",
		},
	)

	transactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cabana_reservations",
			Name:      "transaction_duration_seconds",
			Help:      "Duration of conflict-checked transactions.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationsCreated, transitions, conflicts, transactionDuration)
	})
}

// IncCreated increments the created-reservations counter.
func IncCreated() {
	reservationsCreated.Inc()
}

// IncTransition increments the transition counter for a target status.
func IncTransition(toStatus string) {
	transitions.WithLabelValues(toStatus).Inc()
}

// IncConflict increments the conflict counter.
func IncConflict() {
	conflicts.Inc()
}

// ObserveTransaction records the duration of a conflict-checked transaction.
func ObserveTransaction(d time.Duration) {
	transactionDuration.Observe(d.Seconds())
}
