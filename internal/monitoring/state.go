package monitoring

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// statStore keeps the summary state behind the readiness probe and /health/summary.
// One mutex guards everything; writers are cron jobs and the relay loop, not request paths.
type statStore struct {
	mu    sync.Mutex
	jobs  map[string]*MaintenanceJobSummary
	relay MailRelaySummary
	clock func() time.Time
}

func newStatStore() *statStore {
	return &statStore{jobs: map[string]*MaintenanceJobSummary{}, clock: time.Now}
}

func (s *statStore) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]MaintenanceJobSummary, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	slices.SortFunc(jobs, func(a, b MaintenanceJobSummary) int { return strings.Compare(a.Job, b.Job) })

	return Summary{
		GeneratedAt: s.clock(),
		Maintenance: MaintenanceSummary{Jobs: jobs},
		MailRelay:   s.relay,
	}
}

func (s *statStore) recordRelay(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch result {
	case "delivered":
		s.relay.Delivered++
	case "retried":
		s.relay.Retried++
	default:
		s.relay.Dropped++
	}
}

func (s *statStore) recordMaintenance(job, result, message string, removed int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[job]
	if !ok {
		entry = &MaintenanceJobSummary{Job: job}
		s.jobs[job] = entry
	}

	now := s.clock()
	entry.LastStatus = result
	entry.LastRunAt = now
	entry.LastDuration = max(duration, 0)
	entry.LastRemoved = removed
	entry.LastError = message
	entry.TotalRuns++

	if result == "success" {
		entry.ConsecutiveFailures = 0
		entry.ConsecutiveSuccess++
		entry.LastSuccessAt = now
		return
	}
	entry.ConsecutiveSuccess = 0
	entry.ConsecutiveFailures++
}
