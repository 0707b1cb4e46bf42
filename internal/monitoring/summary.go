package monitoring

import "time"

// Summary surfaces background job state for the readiness probe and operators.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Maintenance MaintenanceSummary `json:"maintenance"`
	MailRelay   MailRelaySummary   `json:"mail_relay"`
}

// MaintenanceSummary lists jobs sorted by name.
type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

// MaintenanceJobSummary is the rolling state of one cleanup job. LastSuccessAt is
// zero until the job first succeeds.
type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastRemoved         int64         `json:"last_removed"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

type MailRelaySummary struct {
	Delivered uint64 `json:"delivered"`
	Retried   uint64 `json:"retried"`
	Dropped   uint64 `json:"dropped"`
}

// Snapshot copies the current module's state. Without a module it reports nothing.
func Snapshot() Summary {
	if module := CurrentModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
