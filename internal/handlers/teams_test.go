package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adpulse/internal/handlers/testutil"
	"github.com/charlesng35/adpulse/internal/models"
)

func TestTeamHandler_CreateUpdateDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Signup("Ana", "ana@acme.com", "s3cret-pass")
	token := owner.Tokens.AccessToken

	create := env.Request(http.MethodPost, "/api/teams", map[string]string{
		"name": "Growth", "allowedDomains": "acme.com, acme.io", "currency": "usd",
	}, token)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var team models.Team
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &team)
	require.Equal(t, "Growth", team.Name)
	require.Equal(t, "USD", team.Currency)
	require.Equal(t, []string{"acme.com", "acme.io"}, team.DomainList())

	badDomains := env.Request(http.MethodPatch, "/api/teams/"+team.ID, map[string]string{"allowedDomains": "not a domain"}, token)
	require.Equal(t, http.StatusBadRequest, badDomains.Code)

	update := env.Request(http.MethodPatch, "/api/teams/"+team.ID, map[string]any{
		"name": "Growth Squad", "timezone": "UTC", "autoTimezone": false,
	}, token)
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, update).Data, &team)
	require.Equal(t, "Growth Squad", team.Name)
	require.Equal(t, "UTC", team.Timezone)
	require.False(t, team.AutoTimezone)

	get := env.Request(http.MethodGet, "/api/teams/"+team.ID, nil, token)
	require.Equal(t, http.StatusOK, get.Code, get.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, get).Data, &team)
	require.NotNil(t, team.Subscription)
	require.Equal(t, models.PlanBasic, team.Subscription.Plan)
	require.Len(t, team.Members, 1)

	list := env.Request(http.MethodGet, "/api/teams", nil, token)
	var teams []testutil.TeamPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, list).Data, &teams)
	require.Len(t, teams, 2)

	del := env.Request(http.MethodDelete, "/api/teams/"+team.ID, nil, token)
	require.Equal(t, http.StatusOK, del.Code, del.Body.String())

	// Memberships cascade with the team, so the guard no longer admits the caller.
	gone := env.Request(http.MethodGet, "/api/teams/"+team.ID, nil, token)
	require.Equal(t, http.StatusForbidden, gone.Code)
}

func TestTeamHandler_NonMembersAreForbidden(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Signup("Ana", "ana@acme.com", "s3cret-pass")
	team := env.PersonalTeam(owner.Tokens.AccessToken)
	outsider := env.Signup("Eve", "eve@other.com", "s3cret-pass")

	for _, path := range []string{
		"/api/teams/" + team.ID,
		"/api/teams/" + team.ID + "/members",
		"/api/teams/" + team.ID + "/sites",
		"/api/teams/" + team.ID + "/subscription",
		"/api/teams/" + team.ID + "/audit",
	} {
		resp := env.Request(http.MethodGet, path, nil, outsider.Tokens.AccessToken)
		require.Equal(t, http.StatusForbidden, resp.Code, path)
	}

	unauth := env.Request(http.MethodGet, "/api/teams", nil, "")
	require.Equal(t, http.StatusUnauthorized, unauth.Code)
}

func TestTeamHandler_MemberRolesAndRemoval(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Signup("Ana", "ana@acme.com", "s3cret-pass")
	team := env.PersonalTeam(owner.Tokens.AccessToken)
	bob := joinTeam(t, env, owner.Tokens.AccessToken, team.ID, "Bob", "bob@acme.com", models.TeamRoleMember)

	var bobMember models.TeamMember
	require.NoError(t, env.DB.Take(&bobMember, "team_id = ? AND user_id = ?", team.ID, bob.User.ID).Error)

	denied := env.Request(http.MethodPatch, "/api/teams/"+team.ID+"/members/"+bobMember.ID, map[string]string{"role": "ADMIN"}, bob.Tokens.AccessToken)
	require.Equal(t, http.StatusForbidden, denied.Code)

	promote := env.Request(http.MethodPatch, "/api/teams/"+team.ID+"/members/"+bobMember.ID, map[string]string{"role": "admin"}, owner.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, promote.Code, promote.Body.String())
	var updated models.TeamMember
	testutil.DecodeInto(t, testutil.DecodeResponse(t, promote).Data, &updated)
	require.Equal(t, models.TeamRoleAdmin, updated.Role)

	var ownerMember models.TeamMember
	require.NoError(t, env.DB.Take(&ownerMember, "team_id = ? AND user_id = ?", team.ID, owner.User.ID).Error)

	lastOwner := env.Request(http.MethodDelete, "/api/teams/"+team.ID+"/members/"+ownerMember.ID, nil, owner.Tokens.AccessToken)
	require.Equal(t, http.StatusConflict, lastOwner.Code)
	require.Equal(t, "LAST_OWNER_PROTECTED", testutil.DecodeResponse(t, lastOwner).Error.Code)

	leave := env.Request(http.MethodDelete, "/api/teams/"+team.ID+"/members/"+bobMember.ID, nil, bob.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, leave.Code, leave.Body.String())

	after := env.Request(http.MethodGet, "/api/teams/"+team.ID, nil, bob.Tokens.AccessToken)
	require.Equal(t, http.StatusForbidden, after.Code)
}

func TestSiteAndSubscriptionHandlers(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Signup("Ana", "ana@acme.com", "s3cret-pass")
	token := owner.Tokens.AccessToken
	team := env.PersonalTeam(token)
	base := "/api/teams/" + team.ID

	invalid := env.Request(http.MethodPost, base+"/sites", map[string]string{"name": "Shop", "url": "shop"}, token)
	require.Equal(t, http.StatusBadRequest, invalid.Code)

	create := env.Request(http.MethodPost, base+"/sites", map[string]string{"name": "Shop", "url": "https://shop.acme.com"}, token)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var site models.Site
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &site)

	limit := env.Request(http.MethodPost, base+"/sites", map[string]string{"name": "Blog", "url": "https://blog.acme.com"}, token)
	require.Equal(t, http.StatusForbidden, limit.Code)
	require.Equal(t, "SITE_LIMIT_REACHED", testutil.DecodeResponse(t, limit).Error.Code)

	upgrade := env.Request(http.MethodPost, base+"/subscription", map[string]any{
		"plan": "pro", "maxAdsSites": 5, "maxMetricSites": 5,
	}, token)
	require.Equal(t, http.StatusOK, upgrade.Code, upgrade.Body.String())

	negative := env.Request(http.MethodPost, base+"/subscription", map[string]any{
		"plan": "pro", "maxAdsSites": -1, "maxMetricSites": 5,
	}, token)
	require.Equal(t, http.StatusBadRequest, negative.Code)

	sub := env.Request(http.MethodGet, base+"/subscription", nil, token)
	var subscription models.Subscription
	testutil.DecodeInto(t, testutil.DecodeResponse(t, sub).Data, &subscription)
	require.Equal(t, models.PlanPro, subscription.Plan)
	require.Equal(t, 5, subscription.MaxAdsSites)

	stranger := env.Signup("Oz", "oz@else.com", "s3cret-pass")
	foreign := env.Request(http.MethodPost, base+"/sites", map[string]any{
		"name": "Blog", "url": "https://blog.acme.com", "users": []string{stranger.User.ID},
	}, token)
	require.Equal(t, http.StatusBadRequest, foreign.Code)
	require.Equal(t, "SITE_USER_NOT_MEMBER", testutil.DecodeResponse(t, foreign).Error.Code)

	blog := env.Request(http.MethodPost, base+"/sites", map[string]any{
		"name": "Blog", "url": "https://blog.acme.com", "users": []string{owner.User.ID},
	}, token)
	require.Equal(t, http.StatusCreated, blog.Code, blog.Body.String())

	taken := env.Request(http.MethodPatch, base+"/sites/"+site.ID, map[string]string{"url": "https://blog.acme.com"}, token)
	require.Equal(t, http.StatusConflict, taken.Code)

	paused := env.Request(http.MethodPatch, base+"/sites/"+site.ID, map[string]string{"status": "inactive"}, token)
	require.Equal(t, http.StatusOK, paused.Code, paused.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, paused).Data, &site)
	require.Equal(t, models.SiteStatusInactive, site.Status)

	list := env.Request(http.MethodGet, base+"/sites", nil, token)
	var sites []models.Site
	testutil.DecodeInto(t, testutil.DecodeResponse(t, list).Data, &sites)
	require.Len(t, sites, 2)

	del := env.Request(http.MethodDelete, base+"/sites/"+site.ID, nil, token)
	require.Equal(t, http.StatusOK, del.Code, del.Body.String())
	missing := env.Request(http.MethodGet, base+"/sites/"+site.ID, nil, token)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestAuditHandler_ListsTeamActivity(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Signup("Ana", "ana@acme.com", "s3cret-pass")
	team := env.PersonalTeam(owner.Tokens.AccessToken)
	member := joinTeam(t, env, owner.Tokens.AccessToken, team.ID, "Bob", "bob@acme.com", models.TeamRoleMember)

	resp := env.Request(http.MethodGet, "/api/teams/"+team.ID+"/audit?action=invite.create&pageSize=10", nil, owner.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var page struct {
		Items    []models.AuditLog `json:"items"`
		Total    int64             `json:"total"`
		Page     int               `json:"page"`
		PageSize int               `json:"pageSize"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &page)
	require.Equal(t, int64(1), page.Total)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 10, page.PageSize)
	require.Equal(t, "invite.create", page.Items[0].Action)
	require.Equal(t, "192.0.2.1", page.Items[0].IPAddress)

	denied := env.Request(http.MethodGet, "/api/teams/"+team.ID+"/audit", nil, member.Tokens.AccessToken)
	require.Equal(t, http.StatusForbidden, denied.Code)
}
