package backup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts backup attempts by result
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafenet_backup_runs_total",
		Help: "Total backup runs by result",
	}, []string{"result"})

	// lastSuccess is the unix time of the newest backup file written
	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cafenet_backup_last_success_timestamp_seconds",
		Help: "Unix time of the last successful backup",
	})

	// duration tracks how long a snapshot plus file write takes
	duration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cafenet_backup_duration_seconds",
		Help:    "Backup duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)
