package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// TransitionsTotal counts lifecycle operations by operation and result kind.
	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus_safety",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Report lifecycle operations, labeled by operation and result (ok or error kind).",
	}, []string{"operation", "result"})

	QuotaRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "campus_safety",
		Subsystem: "quota",
		Name:      "rejected_total",
		Help:      "Report submissions rejected because the daily quota was reached.",
	})

	ZoneRecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus_safety",
		Subsystem: "zones",
		Name:      "recompute_total",
		Help:      "Zone risk recomputations, labeled by whether the derived status changed.",
	}, []string{"changed"})

	// ZoneStatus is 0 SAFE, 1 CAUTION, 2 DANGEROUS per zone id.
	ZoneStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "campus_safety",
		Subsystem: "zones",
		Name:      "status",
		Help:      "Derived risk status per zone (0 safe, 1 caution, 2 dangerous).",
	}, []string{"zone_id"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus_safety",
		Subsystem: "notify",
		Name:      "events_total",
		Help:      "Per-subscriber notification outcomes: delivered, duplicate or dropped.",
	}, []string{"outcome"})

	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "campus_safety",
		Subsystem: "notify",
		Name:      "subscribers",
		Help:      "Currently connected notification subscribers on this instance.",
	})
)

// Register registers the service collectors with the default Prometheus
// registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			TransitionsTotal,
			QuotaRejectedTotal,
			ZoneRecomputeTotal,
			ZoneStatus,
			NotificationsTotal,
			Subscribers,
		)
	})
}
