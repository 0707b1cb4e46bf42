package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/response"
)

// SubscriptionHandler reads and changes a team's plan.
type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

type upsertSubscriptionRequest struct {
	Plan           string `json:"plan" validate:"required"`
	Status         string `json:"status" validate:"omitempty"`
	MaxAdsSites    int    `json:"maxAdsSites" validate:"gte=0"`
	MaxMetricSites int    `json:"maxMetricSites" validate:"gte=0"`
}

// GET /api/teams/:teamId/subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sub, err := h.subscriptions.Get(requestContext(c), actor, c.Param("teamId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// POST /api/teams/:teamId/subscription
func (h *SubscriptionHandler) Upsert(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req upsertSubscriptionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sub, err := h.subscriptions.Upsert(requestContext(c), actor, c.Param("teamId"), services.UpsertSubscriptionInput{
		Plan:           req.Plan,
		Status:         req.Status,
		MaxAdsSites:    req.MaxAdsSites,
		MaxMetricSites: req.MaxMetricSites,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}
