package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbtestutil "github.com/charlesng35/adpulse/internal/database/testutil"
	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/internal/testutil"
	"github.com/charlesng35/adpulse/pkg/crypto"
	"github.com/charlesng35/adpulse/pkg/mail"
)

const testPassword = "Password123!"

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

func (m *recordingMailer) last(t *testing.T) mail.Message {
	t.Helper()
	sent := m.sent()
	require.NotEmpty(t, sent, "expected an email to be sent")
	return sent[len(sent)-1]
}

var tokenPattern = regexp.MustCompile(`\?token=([0-9a-f]{64})`)

// tokenFrom pulls the token out of the first path link in the message body.
func tokenFrom(t *testing.T, msg mail.Message, path string) string {
	t.Helper()
	idx := strings.Index(msg.HTMLBody, path+"?token=")
	require.GreaterOrEqual(t, idx, 0, "link %s not found in %q", path, msg.HTMLBody)

	match := tokenPattern.FindStringSubmatch(msg.HTMLBody[idx:])
	require.Len(t, match, 2)
	return match[1]
}

var errMailDown = errors.New("smtp: connection refused")

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtestutil.MustOpenTestDB(t)
}

func newTestClock() *testutil.MockClock {
	return testutil.NewMockClock(testEpoch)
}

func createUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()

	hash, err := crypto.HashPasswordWithCost(testPassword, crypto.MinPasswordCost)
	require.NoError(t, err)

	user := &models.User{
		Name:          name,
		Email:         email,
		PasswordHash:  &hash,
		EmailVerified: timePtr(testEpoch),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTeam(t *testing.T, db *gorm.DB, name string, owner *models.User) *models.Team {
	t.Helper()

	team := &models.Team{Name: name}
	require.NoError(t, db.Create(team).Error)
	if owner != nil {
		addMember(t, db, team, owner, models.TeamRoleOwner)
	}
	return team
}

func addMember(t *testing.T, db *gorm.DB, team *models.Team, user *models.User, role string) *models.TeamMember {
	t.Helper()

	member := &models.TeamMember{
		TeamID: team.ID,
		UserID: stringPtr(user.ID),
		Role:   role,
		Status: models.MemberStatusActive,
	}
	require.NoError(t, db.Create(member).Error)
	return member
}

func actorFor(user *models.User) Actor {
	return Actor{UserID: user.ID, Email: user.Email}
}
