package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/response"
)

// AuditHandler lists a team's audit trail to its managers.
type AuditHandler struct {
	audit *services.AuditService
	guard *services.Guard
}

func NewAuditHandler(audit *services.AuditService, guard *services.Guard) *AuditHandler {
	return &AuditHandler{audit: audit, guard: guard}
}

type auditPage struct {
	Items    []models.AuditLog `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// GET /api/teams/:teamId/audit
func (h *AuditHandler) List(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	teamID := c.Param("teamId")
	if _, err := h.guard.RequireTeamRole(requestContext(c), actor, teamID, services.ManagerRoles...); err != nil {
		response.Error(c, err)
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := min(queryInt(c, "pageSize", 50), 200)

	logs, total, err := h.audit.ListForTeam(requestContext(c), teamID, services.AuditListOptions{
		Page:     page,
		PageSize: pageSize,
		Action:   strings.TrimSpace(c.Query("action")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}

	response.Success(c, http.StatusOK, auditPage{Items: logs, Total: total, Page: page, PageSize: pageSize})
}
