package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UsageUtilization tracks the last reported utilization per quota
	UsageUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "usagewatch_utilization_percent",
			Help: "Last reported utilization for a quota",
		},
		[]string{"quota"},
	)

	// UsageFetchTotal counts fetch attempts by result kind
	UsageFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagewatch_fetch_total",
			Help: "Total number of usage fetches by result",
		},
		[]string{"result"},
	)

	// UsageAlertsTotal counts threshold crossings
	UsageAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagewatch_alerts_total",
			Help: "Total number of threshold crossings",
		},
		[]string{"quota"},
	)

	// UsageNotificationsTotal counts delivered notifications
	UsageNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagewatch_notifications_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"kind"},
	)

	// UsageRunDuration tracks how long each orchestrated run takes
	UsageRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "usagewatch_run_duration_seconds",
			Help:    "Duration of a poll run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)
)

func init() {
	prometheus.MustRegister(UsageUtilization)
	prometheus.MustRegister(UsageFetchTotal)
	prometheus.MustRegister(UsageAlertsTotal)
	prometheus.MustRegister(UsageNotificationsTotal)
	prometheus.MustRegister(UsageRunDuration)
}
