package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/handlers"
)

type teamRouteDeps struct {
	Teams         *handlers.TeamHandler
	Invites       *handlers.InviteHandler
	Sites         *handlers.SiteHandler
	Subscriptions *handlers.SubscriptionHandler
	Audit         *handlers.AuditHandler
}

// Role checks happen in the services; the routes only require authentication.
func registerTeamRoutes(api *gin.RouterGroup, deps teamRouteDeps) {
	teams := api.Group("/teams")
	{
		teams.GET("", deps.Teams.List)
		teams.POST("", deps.Teams.Create)
		teams.GET("/:teamId", deps.Teams.Get)
		teams.PATCH("/:teamId", deps.Teams.Update)
		teams.DELETE("/:teamId", deps.Teams.Delete)

		teams.GET("/:teamId/members", deps.Teams.ListMembers)
		teams.POST("/:teamId/members/invite", deps.Invites.Create)
		teams.GET("/:teamId/members/invite", deps.Invites.List)
		teams.PATCH("/:teamId/members/:memberId", deps.Teams.ChangeRole)
		teams.DELETE("/:teamId/members/:memberId", deps.Teams.RemoveMember)
		teams.DELETE("/:teamId/invites/:inviteId", deps.Invites.Revoke)

		teams.GET("/:teamId/sites", deps.Sites.List)
		teams.POST("/:teamId/sites", deps.Sites.Create)
		teams.GET("/:teamId/sites/:siteId", deps.Sites.Get)
		teams.PATCH("/:teamId/sites/:siteId", deps.Sites.Update)
		teams.DELETE("/:teamId/sites/:siteId", deps.Sites.Delete)

		teams.GET("/:teamId/subscription", deps.Subscriptions.Get)
		teams.POST("/:teamId/subscription", deps.Subscriptions.Upsert)

		teams.GET("/:teamId/audit", deps.Audit.List)
	}
}
