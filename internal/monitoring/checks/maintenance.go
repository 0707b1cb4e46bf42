package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/adpulse/internal/monitoring"
)

const (
	defaultMaintenanceWindow = 6 * time.Hour
	// failureThreshold is the streak at which a job that has succeeded before is reported down.
	failureThreshold = 3
)

// MaintenanceOption customises the maintenance probe.
type MaintenanceOption func(*maintenanceProbe)

// WithJobWindow sets how long a job may go without a successful run.
func WithJobWindow(job string, window time.Duration) MaintenanceOption {
	return func(p *maintenanceProbe) {
		if job != "" && window > 0 {
			p.windows[job] = window
		}
	}
}

// WithMaintenanceClock overrides the probe clock.
func WithMaintenanceClock(now func() time.Time) MaintenanceOption {
	return func(p *maintenanceProbe) {
		if now != nil {
			p.now = now
		}
	}
}

type maintenanceProbe struct {
	fallback time.Duration
	windows  map[string]time.Duration
	now      func() time.Time
}

// Maintenance reports on the cleanup jobs recorded by the monitoring module. A job
// that has never succeeded and is failing, or has failed failureThreshold times in a
// row, is down. Shorter streaks and overdue successes degrade. fallback applies to
// jobs without their own window.
func Maintenance(fallback time.Duration, opts ...MaintenanceOption) monitoring.Check {
	probe := &maintenanceProbe{
		fallback: chooseTimeout(fallback, defaultMaintenanceWindow),
		windows:  map[string]time.Duration{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(probe)
	}
	return monitoring.NewCheck("maintenance", probe.run)
}

func (p *maintenanceProbe) run(context.Context) monitoring.ProbeResult {
	start := time.Now()
	jobs := monitoring.Snapshot().Maintenance.Jobs
	if len(jobs) == 0 {
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no runs recorded yet", Duration: time.Since(start)}
	}

	now := p.now()
	status := monitoring.StatusUp
	var notes []string
	for _, job := range jobs {
		jobStatus, note := p.assess(job, now)
		status = worstStatus(status, jobStatus)
		if note != "" {
			notes = append(notes, job.Job+": "+note)
		}
	}

	return monitoring.ProbeResult{Status: status, Details: strings.Join(notes, "; "), Duration: time.Since(start)}
}

func (p *maintenanceProbe) assess(job monitoring.MaintenanceJobSummary, now time.Time) (monitoring.ProbeStatus, string) {
	if job.ConsecutiveFailures > 0 {
		note := fmt.Sprintf("consecutive failures x%d", job.ConsecutiveFailures)
		if job.LastError != "" {
			note += " (" + job.LastError + ")"
		}
		if job.LastSuccessAt.IsZero() || job.ConsecutiveFailures >= failureThreshold {
			return monitoring.StatusDown, note
		}
		return monitoring.StatusDegraded, note
	}

	window, ok := p.windows[job.Job]
	if !ok {
		window = p.fallback
	}
	if !job.LastSuccessAt.IsZero() && now.Sub(job.LastSuccessAt) > window {
		return monitoring.StatusDegraded, "no success since " + job.LastSuccessAt.UTC().Format(time.RFC3339)
	}
	return monitoring.StatusUp, ""
}

func worstStatus(current, candidate monitoring.ProbeStatus) monitoring.ProbeStatus {
	rank := map[monitoring.ProbeStatus]int{monitoring.StatusUp: 0, monitoring.StatusDegraded: 1, monitoring.StatusDown: 2}
	if rank[candidate] > rank[current] {
		return candidate
	}
	return current
}
