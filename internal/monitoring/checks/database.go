package checks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/database"
	"github.com/charlesng35/adpulse/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database pings the primary store. The details carry the dialect and pool usage so
// connection exhaustion shows up on the readiness page before requests start failing.
// A pool with every allowed connection in use is reported degraded.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	timeout = chooseTimeout(timeout, defaultDatabaseTimeout)

	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := database.Ping(pingCtx, db); err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}
		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		stats := sqlDB.Stats()
		result := monitoring.ProbeResult{
			Status: monitoring.StatusUp,
			Details: fmt.Sprintf("%s open=%d in_use=%d idle=%d waits=%d",
				db.Dialector.Name(), stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount),
			Duration: time.Since(start),
		}
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
