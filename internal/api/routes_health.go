package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/app"
	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/response"
)

var errHealthDisabled = errors.New("HEALTH_DISABLED", "health checks are disabled", http.StatusNotFound)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	health := r.Group("/health")

	if !cfg.Monitoring.Health.Enabled || mon.Health() == nil {
		disabled := func(c *gin.Context) { response.Error(c, errHealthDisabled) }
		health.GET("", disabled)
		health.GET("/live", disabled)
		health.GET("/ready", disabled)
		return
	}

	manager := mon.Health()

	health.GET("", func(c *gin.Context) {
		report := manager.EvaluateReadiness(c.Request.Context())
		c.JSON(reportStatus(report), gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": time.Now().UTC(),
		})
	})

	health.GET("/live", func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateLiveness(c.Request.Context()), nil)
	})

	health.GET("/ready", func(c *gin.Context) {
		summary := monitoring.Snapshot()
		writeHealthReport(c, manager.EvaluateReadiness(c.Request.Context()), &summary)
	})
}

func reportStatus(report monitoring.HealthReport) int {
	if !report.Success {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport, summary *monitoring.Summary) {
	body := gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	}
	if summary != nil {
		body["background"] = summary
	}
	c.JSON(reportStatus(report), body)
}
