package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adpulse/internal/handlers/testutil"
)

var errMailDown = errors.New("smtp: connection refused")

// joinTeam invites email into teamID as role and completes registration.
func joinTeam(t *testing.T, env *testutil.Env, ownerToken, teamID, name, email, role string) testutil.SessionResult {
	t.Helper()

	create := env.Request(http.MethodPost, "/api/teams/"+teamID+"/members/invite", map[string]string{"email": email, "role": role}, ownerToken)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())

	token := env.Mailer.TokenFor(t, email, "/register")
	process := env.Request(http.MethodPost, "/api/auth/invites/process", map[string]string{
		"token": token, "name": name, "email": email, "password": "member-password",
	}, "")
	require.Equal(t, http.StatusOK, process.Code, process.Body.String())
	return env.Login(email, "member-password")
}
