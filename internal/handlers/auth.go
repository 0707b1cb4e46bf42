package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/middleware"
	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/internal/services"
	appErrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/response"
)

// ErrAccountLocked is returned by login while the lockout window is open.
var ErrAccountLocked = appErrors.New("ACCOUNT_LOCKED", "Too many failed attempts, try again later", http.StatusLocked)

// AuthHandler manages signup and the session lifecycle (login/refresh/logout/me).
type AuthHandler struct {
	local    *iauth.LocalAuthenticator
	sessions *iauth.SessionService
	users    *services.UserService
	teams    *services.TeamService
}

func NewAuthHandler(local *iauth.LocalAuthenticator, sessions *iauth.SessionService, users *services.UserService, teams *services.TeamService) *AuthHandler {
	return &AuthHandler{local: local, sessions: sessions, users: users, teams: teams}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type userDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Image         string     `json:"image,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	HasPassword   bool       `json:"has_password"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

type sessionResponse struct {
	Tokens iauth.TokenPair `json:"tokens"`
	User   userDTO         `json:"user"`
}

func toUserDTO(user *models.User) userDTO {
	return userDTO{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Image:         user.Image,
		EmailVerified: user.EmailVerified != nil,
		HasPassword:   user.HasPassword(),
		LastLoginAt:   user.LastLoginAt,
	}
}

func sessionMetadata(c *gin.Context) iauth.SessionMetadata {
	return iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Signup(requestContext(c), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(requestContext(c), user, sessionMetadata(c))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, sessionResponse{Tokens: pair, User: toUserDTO(user)})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.local.Authenticate(requestContext(c), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, iauth.ErrInvalidCredentials):
		response.Error(c, appErrors.ErrInvalidCredentials)
		return
	case errors.Is(err, iauth.ErrAccountLocked):
		response.Error(c, ErrAccountLocked)
		return
	default:
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	pair, _, err := h.sessions.CreateSession(requestContext(c), user, sessionMetadata(c))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, sessionResponse{Tokens: pair, User: toUserDTO(user)})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.RefreshSession(requestContext(c), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, iauth.ErrSessionNotFound),
			errors.Is(err, iauth.ErrSessionRevoked),
			errors.Is(err, iauth.ErrSessionExpired),
			errors.Is(err, iauth.ErrSessionInvalidToken):
			response.Error(c, appErrors.ErrUnauthorized)
		default:
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		}
		return
	}

	response.Success(c, http.StatusOK, pair)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sid := c.GetString(middleware.CtxSessionIDKey)
	if sid == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(requestContext(c), sid); err != nil && !errors.Is(err, iauth.ErrSessionNotFound) {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.users.GetByID(requestContext(c), actor.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		response.Error(c, err)
		return
	}

	teams, err := h.teams.List(requestContext(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":  toUserDTO(user),
		"teams": teams,
	})
}
