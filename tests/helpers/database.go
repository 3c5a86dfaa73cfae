// Package helpers contains shared scaffolding for integration tests which
// need a real Postgres instance to exercise the store layer against.
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/hbomb79/Selene/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	user     = "postgres"
	password = "postgres"
	dbName   = "SELENE_TEST_DB"
)

// RequireDatabase spawns an ephemeral Postgres container, connects Selene's
// database manager to it (which also applies the embedded migrations) and
// returns the resulting connection. The container is torn down when the
// test completes. Tests using this helper should not run with t.Parallel as
// each invocation provisions its own container.
func RequireDatabase(t *testing.T) *sqlx.DB {
	ctx := context.Background()

	postgresC, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) { hostConfig.NetworkMode = "host" }),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}

	t.Cleanup(func() {
		timeout := 5 * time.Second
		if err := postgresC.Stop(ctx, &timeout); err != nil {
			t.Logf("WARNING: failed to stop postgres container: %s", err)
		}
	})

	manager := database.New()
	if err := manager.Connect(database.DatabaseConfig{
		User:     user,
		Password: password,
		Name:     dbName,
		Host:     "0.0.0.0",
		Port:     "5432",
	}); err != nil {
		t.Fatalf("failed to connect to provisioned database: %s", err)
	}

	db := manager.GetSqlxDb()
	t.Cleanup(func() { _ = db.Close() })

	t.Log("Database provisioned and migrated")
	return db
}
