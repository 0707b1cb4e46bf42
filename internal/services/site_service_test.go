package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
)

type siteFixture struct {
	db    *gorm.DB
	sites *SiteService
	subs  *SubscriptionService
	owner *models.User
	team  *models.Team
}

func setupSiteService(t *testing.T) *siteFixture {
	t.Helper()

	db := openServiceTestDB(t)
	guard, err := NewGuard(db)
	require.NoError(t, err)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	teams, err := NewTeamService(db, guard)
	require.NoError(t, err)
	sites, err := NewSiteService(db, guard, WithSiteAudit(audit))
	require.NoError(t, err)
	subs, err := NewSubscriptionService(db, guard, audit)
	require.NoError(t, err)

	owner := createUser(t, db, "Ana", "ana@acme.com")
	team, err := teams.Create(context.Background(), actorFor(owner), CreateTeamInput{Name: "Growth"})
	require.NoError(t, err)

	return &siteFixture{db: db, sites: sites, subs: subs, owner: owner, team: team}
}

func TestSiteCreateGrantsCreatorAndEnforcesQuota(t *testing.T) {
	f := setupSiteService(t)
	ctx := context.Background()

	site, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Shop", URL: "https://Shop.Acme.com/"})
	require.NoError(t, err)
	require.Equal(t, "https://shop.acme.com", site.URL)
	require.Equal(t, models.SiteStatusActive, site.Status)

	var grant models.SiteUser
	require.NoError(t, f.db.Take(&grant, "site_id = ?", site.ID).Error)
	require.Equal(t, f.owner.ID, grant.UserID)
	require.Equal(t, models.SiteRoleAdmin, grant.Role)

	// BASIC allows a single site.
	_, err = f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Blog", URL: "https://blog.acme.com"})
	require.ErrorIs(t, err, ErrSiteLimitReached)
}

func TestSiteCreateGrantsListedMembers(t *testing.T) {
	f := setupSiteService(t)
	ctx := context.Background()
	mia := createUser(t, f.db, "Mia", "mia@acme.com")
	addMember(t, f.db, f.team, mia, models.TeamRoleMember)
	outsider := createUser(t, f.db, "Oz", "oz@else.com")

	_, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{
		Name: "Shop", URL: "https://shop.acme.com", Users: []string{mia.ID, outsider.ID},
	})
	require.ErrorIs(t, err, ErrSiteUserNotMember)
	var sites int64
	require.NoError(t, f.db.Model(&models.Site{}).Count(&sites).Error)
	require.Zero(t, sites)

	site, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{
		Name: "Shop", URL: "https://shop.acme.com", Users: []string{" " + mia.ID, mia.ID, f.owner.ID},
	})
	require.NoError(t, err)

	got, err := f.sites.Get(ctx, actorFor(mia), f.team.ID, site.ID)
	require.NoError(t, err)
	roles := map[string]string{}
	for _, grant := range got.Users {
		roles[grant.UserID] = grant.Role
	}
	require.Equal(t, map[string]string{
		f.owner.ID: models.SiteRoleAdmin,
		mia.ID:     models.SiteRoleMember,
	}, roles)
}

func TestSiteCreateRejectsPendingInvitees(t *testing.T) {
	f := setupSiteService(t)
	bob := createUser(t, f.db, "Bob", "bob@acme.com")
	row := addMember(t, f.db, f.team, bob, models.TeamRoleMember)
	require.NoError(t, f.db.Model(&models.TeamMember{}).Where("id = ?", row.ID).
		Update("status", models.MemberStatusPending).Error)

	_, err := f.sites.Create(context.Background(), actorFor(f.owner), f.team.ID, CreateSiteInput{
		Name: "Shop", URL: "https://shop.acme.com", Users: []string{bob.ID},
	})
	require.ErrorIs(t, err, ErrSiteUserNotMember)
}

func TestSiteCreateRequiresSubscription(t *testing.T) {
	f := setupSiteService(t)
	require.NoError(t, f.db.Where("team_id = ?", f.team.ID).Delete(&models.Subscription{}).Error)

	_, err := f.sites.Create(context.Background(), actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Shop", URL: "https://shop.acme.com"})
	require.ErrorIs(t, err, ErrSubscriptionRequired)
}

func TestSiteURLIsUnique(t *testing.T) {
	f := setupSiteService(t)
	ctx := context.Background()
	_, err := f.subs.Upsert(ctx, actorFor(f.owner), f.team.ID, UpsertSubscriptionInput{Plan: "pro", MaxAdsSites: 5, MaxMetricSites: 5})
	require.NoError(t, err)

	shop, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Shop", URL: "https://shop.acme.com"})
	require.NoError(t, err)
	blog, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Blog", URL: "https://blog.acme.com"})
	require.NoError(t, err)

	_, err = f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Dup", URL: "https://shop.acme.com"})
	require.ErrorIs(t, err, ErrSiteURLTaken)

	taken := "https://shop.acme.com"
	_, err = f.sites.Update(ctx, actorFor(f.owner), f.team.ID, blog.ID, UpdateSiteInput{URL: &taken})
	require.ErrorIs(t, err, ErrSiteURLTaken)

	name := "Storefront"
	updated, err := f.sites.Update(ctx, actorFor(f.owner), f.team.ID, shop.ID, UpdateSiteInput{Name: &name, URL: &taken})
	require.NoError(t, err)
	require.Equal(t, "Storefront", updated.Name)
}

func TestSiteValidationAndPermissions(t *testing.T) {
	f := setupSiteService(t)
	ctx := context.Background()
	member := createUser(t, f.db, "Mia", "mia@acme.com")
	addMember(t, f.db, f.team, member, models.TeamRoleMember)

	_, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Shop", URL: "shop.acme.com"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.sites.Create(ctx, actorFor(member), f.team.ID, CreateSiteInput{Name: "Shop", URL: "https://shop.acme.com"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	site, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Shop", URL: "https://shop.acme.com"})
	require.NoError(t, err)

	listed, err := f.sites.List(ctx, actorFor(member), f.team.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	got, err := f.sites.Get(ctx, actorFor(member), f.team.ID, site.ID)
	require.NoError(t, err)
	require.Len(t, got.Users, 1)

	_, err = f.sites.Get(ctx, actorFor(member), f.team.ID, "missing")
	require.ErrorIs(t, err, ErrSiteNotFound)

	require.ErrorIs(t, f.sites.Delete(ctx, actorFor(member), f.team.ID, site.ID), apperrors.ErrForbidden)
}

func TestSiteDeleteCascadesGrants(t *testing.T) {
	f := setupSiteService(t)
	ctx := context.Background()

	site, err := f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Shop", URL: "https://shop.acme.com"})
	require.NoError(t, err)
	require.NoError(t, f.sites.Delete(ctx, actorFor(f.owner), f.team.ID, site.ID))

	var grants int64
	require.NoError(t, f.db.Model(&models.SiteUser{}).Count(&grants).Error)
	require.Zero(t, grants)

	require.ErrorIs(t, f.sites.Delete(ctx, actorFor(f.owner), f.team.ID, site.ID), ErrSiteNotFound)
}

func TestSubscriptionUpsertOwnerOnly(t *testing.T) {
	f := setupSiteService(t)
	ctx := context.Background()
	admin := createUser(t, f.db, "Ada", "ada@acme.com")
	addMember(t, f.db, f.team, admin, models.TeamRoleAdmin)

	_, err := f.subs.Upsert(ctx, actorFor(admin), f.team.ID, UpsertSubscriptionInput{Plan: models.PlanPro, MaxAdsSites: 3})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.subs.Upsert(ctx, actorFor(f.owner), f.team.ID, UpsertSubscriptionInput{Plan: "FREE"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	sub, err := f.subs.Upsert(ctx, actorFor(f.owner), f.team.ID, UpsertSubscriptionInput{Plan: "enterprise", MaxAdsSites: 0, MaxMetricSites: 10})
	require.NoError(t, err)
	require.Equal(t, models.PlanEnterprise, sub.Plan)
	require.Zero(t, sub.MaxAdsSites)

	got, err := f.subs.Get(ctx, actorFor(admin), f.team.ID)
	require.NoError(t, err)
	require.Equal(t, models.PlanEnterprise, got.Plan)
	require.Zero(t, got.MaxAdsSites)
	require.Equal(t, 10, got.MaxMetricSites)

	_, err = f.sites.Create(ctx, actorFor(f.owner), f.team.ID, CreateSiteInput{Name: "Shop", URL: "https://shop.acme.com"})
	require.ErrorIs(t, err, ErrSiteLimitReached)
}

func TestSubscriptionUpsertCreatesMissing(t *testing.T) {
	f := setupSiteService(t)
	require.NoError(t, f.db.Where("team_id = ?", f.team.ID).Delete(&models.Subscription{}).Error)

	_, err := f.subs.Get(context.Background(), actorFor(f.owner), f.team.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	sub, err := f.subs.Upsert(context.Background(), actorFor(f.owner), f.team.ID, UpsertSubscriptionInput{Plan: models.PlanPro, MaxAdsSites: 2, MaxMetricSites: 4})
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID)
	require.Equal(t, 2, sub.MaxAdsSites)
}
