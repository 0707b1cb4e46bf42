package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/adpulse/pkg/errors"
)

var (
	// ErrTeamNotFound indicates the requested team does not exist or is not visible to the actor.
	ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)
	// ErrMemberNotFound indicates the requested membership does not exist in the team.
	ErrMemberNotFound = apperrors.New("MEMBER_NOT_FOUND", "Member not found", http.StatusNotFound)
	// ErrSiteNotFound indicates the requested site does not exist in the team.
	ErrSiteNotFound = apperrors.New("SITE_NOT_FOUND", "Site not found", http.StatusNotFound)

	ErrLastOwnerProtected = apperrors.New("LAST_OWNER_PROTECTED", "A team must keep at least one owner", http.StatusConflict)
	ErrSiteURLTaken       = apperrors.New("SITE_URL_TAKEN", "A site with this URL already exists", http.StatusConflict)
	ErrEmailTaken         = apperrors.New("EMAIL_TAKEN", "An account with this email already exists", http.StatusConflict)

	ErrDuplicateInvite        = apperrors.New("DUPLICATE_INVITE", "This email already has a pending invite or membership", http.StatusBadRequest)
	ErrDomainNotAllowed       = apperrors.New("DOMAIN_NOT_ALLOWED", "Email domain is not allowed for this team", http.StatusBadRequest)
	ErrEmailMismatch          = apperrors.New("EMAIL_MISMATCH", "Email does not match the invitation", http.StatusBadRequest)
	ErrSiteUserNotMember      = apperrors.New("SITE_USER_NOT_MEMBER", "Site users must be active members of the team", http.StatusBadRequest)
	ErrInvalidOrExpiredToken  = apperrors.New("INVALID_OR_EXPIRED_TOKEN", "Invalid or expired token", http.StatusBadRequest)
	ErrInvalidOrExpiredInvite = apperrors.New("INVALID_OR_EXPIRED_INVITE", "Invalid or expired invitation", http.StatusBadRequest)

	// ErrCurrentPasswordIncorrect shares its code with the login failure but is a 400.
	ErrCurrentPasswordIncorrect = apperrors.New(apperrors.ErrInvalidCredentials.Code, "Current password is incorrect", http.StatusBadRequest)
	ErrNoPasswordSet            = apperrors.New("NO_PASSWORD_SET", "User not found or has no password set", http.StatusBadRequest)

	ErrSiteLimitReached     = apperrors.New("SITE_LIMIT_REACHED", "Site limit reached", http.StatusForbidden)
	ErrSubscriptionRequired = apperrors.New("SUBSCRIPTION_REQUIRED", "An active subscription is required", http.StatusForbidden)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

// mailFailure reports an undeliverable message as an internal error.
func mailFailure(err error) error {
	return apperrors.ErrInternalServer.WithInternal(err)
}
