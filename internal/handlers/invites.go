package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/internal/services"
	appErrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/response"
)

// InviteHandler serves team invitations: creation and listing for managers,
// plus the public verify/process pair used by the registration page.
type InviteHandler struct {
	invites *services.InviteService
}

func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

type createInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,teamrole"`
}

type processInviteRequest struct {
	Token    string `json:"token" validate:"required"`
	Name     string `json:"name" validate:"omitempty,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,max=128"`
}

type inviteCreatedResponse struct {
	InviteID  string    `json:"inviteId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// POST /api/teams/:teamId/members/invite
func (h *InviteHandler) Create(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	role := strings.ToUpper(req.Role)
	if role == "" {
		role = models.TeamRoleMember
	}

	summary, err := h.invites.CreateInvite(requestContext(c), actor, c.Param("teamId"), req.Email, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, inviteCreatedResponse{
		InviteID:  summary.ID,
		Email:     summary.Email,
		Role:      summary.Role,
		ExpiresAt: summary.ExpiresAt,
	})
}

// GET /api/teams/:teamId/members/invite
func (h *InviteHandler) List(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	invites, err := h.invites.ListPending(requestContext(c), actor, c.Param("teamId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invites)
}

// DELETE /api/teams/:teamId/invites/:inviteId
func (h *InviteHandler) Revoke(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.invites.RevokeInvite(requestContext(c), actor, c.Param("teamId"), c.Param("inviteId")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/auth/invites/verify?token=
func (h *InviteHandler) Verify(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.NewBadRequest("token is required"))
		return
	}

	info, err := h.invites.VerifyInvite(requestContext(c), token)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOrExpiredInvite) {
			response.Error(c, appErrors.New(services.ErrInvalidOrExpiredInvite.Code, services.ErrInvalidOrExpiredInvite.Message, http.StatusNotFound))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, info)
}

// POST /api/auth/invites/process
func (h *InviteHandler) Process(c *gin.Context) {
	var req processInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invites.AcceptInvite(requestContext(c), services.AcceptInviteInput{
		Token:    req.Token,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
