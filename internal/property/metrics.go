package property

import "github.com/prometheus/client_golang/prometheus"

var (
	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "property",
			Name:      "rejected_total",
			Help:      "Total silently rejected mutations",
		},
		[]string{"reason"},
	)

	acceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "property",
			Name:      "accepted_total",
			Help:      "Total accepted mutations",
		},
	)
)

// Rejection reasons used as the "reason" label.
const (
	reasonEqual   = "equal"
	reasonInvalid = "invalid"
)

func init() {
	prometheus.MustRegister(rejectedTotal, acceptedTotal)
}
