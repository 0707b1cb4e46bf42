package testutil

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/database"
)

// Option customises MustOpenTestDB.
type Option func(*options)

type options struct {
	migrate bool
}

// WithoutMigrations leaves the schema empty, for tests that only need a live handle.
func WithoutMigrations() Option {
	return func(o *options) { o.migrate = false }
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// MustOpenTestDB opens a migrated in-memory SQLite database private to t and closes
// it on cleanup. The database is named after the test so lock errors point at it.
func MustOpenTestDB(t testing.TB, opts ...Option) *gorm.DB {
	t.Helper()

	o := options{migrate: true}
	for _, opt := range opts {
		opt(&o)
	}

	name := unsafeName.ReplaceAllString(t.Name(), "_") + "_" + uuid.NewString()[:8]
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: database.MemoryDSN(name)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	if o.migrate {
		require.NoError(t, database.AutoMigrate(db))
	}
	return db
}
