package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type collectors struct {
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
	maintenanceRemoved  *prometheus.CounterVec
	relayMessages       *prometheus.CounterVec
	healthProbes        *prometheus.CounterVec
}

// maintenance jobs run on minute-to-hour schedules, so the buckets start at 10ms and stop at two minutes.
var maintenanceBuckets = []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120}

// newCollectors registers every operational collector on reg under namespace.
func newCollectors(reg prometheus.Registerer, namespace string) *collectors {
	factory := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	return &collectors{
		maintenanceRuns: counter("maintenance_runs_total", "Maintenance job executions", "job", "result"),
		maintenanceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "maintenance_duration_seconds",
			Help:      "Maintenance job duration",
			Buckets:   maintenanceBuckets,
		}, []string{"job"}),
		maintenanceLastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "maintenance_last_success_timestamp",
			Help:      "Unix time of the last successful maintenance run",
		}, []string{"job"}),
		maintenanceRemoved: counter("maintenance_rows_total", "Rows expired or purged by maintenance jobs", "job"),
		relayMessages:      counter("mail_relay_messages_total", "Queued mail events handled by the relay", "result"),
		healthProbes:       counter("health_probes_total", "Health probe outcomes by component", "component", "status"),
	}
}

func observeDuration(observer prometheus.Observer, d time.Duration) {
	observer.Observe(max(d, 0).Seconds())
}
