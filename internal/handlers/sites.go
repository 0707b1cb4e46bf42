package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/response"
)

// SiteHandler manages the tracked sites of a team.
type SiteHandler struct {
	sites *services.SiteService
}

func NewSiteHandler(sites *services.SiteService) *SiteHandler {
	return &SiteHandler{sites: sites}
}

type createSiteRequest struct {
	Name  string   `json:"name" validate:"required,max=128"`
	URL   string   `json:"url" validate:"required,url"`
	Users []string `json:"users" validate:"omitempty,max=100"`
}

type updateSiteRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=128"`
	URL    *string `json:"url" validate:"omitempty,url"`
	Status *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE active inactive"`
}

// GET /api/teams/:teamId/sites
func (h *SiteHandler) List(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sites, err := h.sites.List(requestContext(c), actor, c.Param("teamId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sites)
}

// POST /api/teams/:teamId/sites
func (h *SiteHandler) Create(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createSiteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	site, err := h.sites.Create(requestContext(c), actor, c.Param("teamId"), services.CreateSiteInput{
		Name:  req.Name,
		URL:   req.URL,
		Users: req.Users,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, site)
}

// GET /api/teams/:teamId/sites/:siteId
func (h *SiteHandler) Get(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	site, err := h.sites.Get(requestContext(c), actor, c.Param("teamId"), c.Param("siteId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, site)
}

// PATCH /api/teams/:teamId/sites/:siteId
func (h *SiteHandler) Update(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req updateSiteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.Status != nil {
		status := strings.ToUpper(*req.Status)
		req.Status = &status
	}

	site, err := h.sites.Update(requestContext(c), actor, c.Param("teamId"), c.Param("siteId"), services.UpdateSiteInput{
		Name:   req.Name,
		URL:    req.URL,
		Status: req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, site)
}

// DELETE /api/teams/:teamId/sites/:siteId
func (h *SiteHandler) Delete(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.sites.Delete(requestContext(c), actor, c.Param("teamId"), c.Param("siteId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
