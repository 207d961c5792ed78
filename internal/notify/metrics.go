package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "notify",
			Name:      "delivered_total",
			Help:      "Total listener invocations that returned normally",
		},
	)

	queuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "notify",
			Name:      "queued_total",
			Help:      "Total change events queued inside a transaction",
		},
	)

	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "notify",
			Name:      "transactions_total",
			Help:      "Total transaction state transitions",
		},
		[]string{"phase"},
	)

	listenerPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "notify",
			Name:      "listener_panics_total",
			Help:      "Total panics recovered from listeners",
		},
	)
)

func init() {
	prometheus.MustRegister(deliveredTotal, queuedTotal, transactionsTotal, listenerPanicsTotal)
}
