package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/response"
)

// TeamHandler serves team settings and the member roster.
type TeamHandler struct {
	teams   *services.TeamService
	invites *services.InviteService
}

func NewTeamHandler(teams *services.TeamService, invites *services.InviteService) *TeamHandler {
	return &TeamHandler{teams: teams, invites: invites}
}

type createTeamRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=128"`
	AllowedDomains string `json:"allowedDomains" validate:"omitempty,domainlist"`
	Language       string `json:"language" validate:"omitempty,max=16"`
	Timezone       string `json:"timezone" validate:"omitempty,max=64"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
}

type updateTeamRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=2,max=128"`
	AllowedDomains *string `json:"allowedDomains" validate:"omitempty,domainlist"`
	Language       *string `json:"language" validate:"omitempty,max=16"`
	Timezone       *string `json:"timezone" validate:"omitempty,max=64"`
	AutoTimezone   *bool   `json:"autoTimezone"`
	Currency       *string `json:"currency" validate:"omitempty,len=3"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,teamrole"`
}

func splitDomains(value string) []string {
	parts := strings.Split(value, ",")
	domains := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			domains = append(domains, part)
		}
	}
	return domains
}

// GET /api/teams
func (h *TeamHandler) List(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	teams, err := h.teams.List(requestContext(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createTeamRequest
	if !bindAndValidate(c, &req) {
		return
	}

	team, err := h.teams.Create(requestContext(c), actor, services.CreateTeamInput{
		Name:           req.Name,
		AllowedDomains: splitDomains(req.AllowedDomains),
		Language:       req.Language,
		Timezone:       req.Timezone,
		Currency:       strings.ToUpper(req.Currency),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, team)
}

// GET /api/teams/:teamId
func (h *TeamHandler) Get(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	team, err := h.teams.Get(requestContext(c), actor, c.Param("teamId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// PATCH /api/teams/:teamId
func (h *TeamHandler) Update(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req updateTeamRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateTeamInput{
		Name:         req.Name,
		Language:     req.Language,
		Timezone:     req.Timezone,
		AutoTimezone: req.AutoTimezone,
	}
	if req.AllowedDomains != nil {
		domains := splitDomains(*req.AllowedDomains)
		input.AllowedDomains = &domains
	}
	if req.Currency != nil {
		currency := strings.ToUpper(*req.Currency)
		input.Currency = &currency
	}

	team, err := h.teams.Update(requestContext(c), actor, c.Param("teamId"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// DELETE /api/teams/:teamId
func (h *TeamHandler) Delete(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.teams.Delete(requestContext(c), actor, c.Param("teamId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/teams/:teamId/members
func (h *TeamHandler) ListMembers(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	members, err := h.teams.ListMembers(requestContext(c), actor, c.Param("teamId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// PATCH /api/teams/:teamId/members/:memberId
func (h *TeamHandler) ChangeRole(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req changeRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	member, err := h.invites.ChangeRole(requestContext(c), actor, c.Param("teamId"), c.Param("memberId"), strings.ToUpper(req.Role))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// DELETE /api/teams/:teamId/members/:memberId
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.invites.RemoveMember(requestContext(c), actor, c.Param("teamId"), c.Param("memberId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
