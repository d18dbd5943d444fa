// Package dbtest opens isolated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"childcare-scheduling-backend/config"
	"childcare-scheduling-backend/internal/db"
)

// New returns a migrated in-memory SQLite database private to the test.
// It is limited to one connection, so concurrent callers queue on the pool
// the way they would queue on a row lock.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return gormDB
}
