// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PriceChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_checks_total",
			Help: "Total number of product price checks by result",
		},
		[]string{"result"},
	)

	PriceChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_changes_total",
			Help: "Total number of logged price checks by change type",
		},
		[]string{"change_type"},
	)

	NotificationsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of notification jobs handed to the queue by kind",
		},
		[]string{"kind"},
	)

	NotificationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_outcomes_total",
			Help: "Total number of notification executions by resulting status",
		},
		[]string{"status"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_check_cycle_duration_seconds",
			Help:    "Duration of a full price check cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

// Register adds every collector to the default registry.
func Register() {
	prometheus.MustRegister(PriceChecksTotal)
	prometheus.MustRegister(PriceChangesTotal)
	prometheus.MustRegister(NotificationsDispatchedTotal)
	prometheus.MustRegister(NotificationOutcomesTotal)
	prometheus.MustRegister(CycleDuration)
}
