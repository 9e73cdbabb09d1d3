//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloudconsole/engine/internal/tracker"
	"github.com/cloudconsole/engine/internal/tracker/trackertest"
	"github.com/cloudconsole/engine/pkg/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("console_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, database.Options{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestPostgresStatusStoreContract(t *testing.T) {
	db := startPostgres(t)
	trackertest.Run(t, func(t *testing.T) tracker.Store {
		require.NoError(t, db.Exec("TRUNCATE deployment_statuses").Error)
		return NewStatusStore(db)
	})
}
