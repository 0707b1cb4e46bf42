package monitoring

import (
	"strings"
	"time"
)

// RecordMaintenanceRun captures the outcome of a cleanup job. result is
// "success" or "failure"; removed is the number of rows the job touched.
func RecordMaintenanceRun(job, result, message string, removed int64, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	job = strings.TrimSpace(job)
	if job == "" {
		job = "unknown"
	}
	label := normalizeLabel(result)

	module.metrics.maintenanceRuns.WithLabelValues(job, label).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(job), duration)
	if label == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(job).SetToCurrentTime()
		if removed > 0 {
			module.metrics.maintenanceRemoved.WithLabelValues(job).Add(float64(removed))
		}
	}
	module.stats.recordMaintenance(job, label, message, removed, duration)
}

// RecordRelayMessage counts a queued mail event handled by the relay.
func RecordRelayMessage(result string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.relayMessages.WithLabelValues(label).Inc()
	module.stats.recordRelay(label)
}

func recordProbe(result ProbeResult) {
	module := CurrentModule()
	if module == nil {
		return
	}
	module.metrics.healthProbes.WithLabelValues(result.Component, string(result.Status)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
