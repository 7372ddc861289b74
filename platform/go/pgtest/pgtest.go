// Package pgtest provides the shared Postgres harness for integration tests.
// Tests run against TEST_DATABASE_URL when set; with TEST_USE_CONTAINERS=1 a
// throwaway Postgres container is started instead. Otherwise the test skips,
// so the unit suite stays runnable without Docker or a local database.
package pgtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

// Slug returns a fresh, valid tenant id so tests stay re-runnable against a
// shared long-lived database.
func Slug(t *testing.T) string {
	t.Helper()
	return "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Pool returns a pool connected to a test database with the registry
// migrations applied. The pool and any backing container are cleaned up with
// the test.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	connString := connStringOrSkip(t, ctx)

	if err := persistence.MigrateRegistry(ctx, connString); err != nil {
		t.Fatalf("migrate registry: %v", err)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("create test pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// ConnString returns the DSN of the test database without applying migrations.
func ConnString(t *testing.T) string {
	t.Helper()
	return connStringOrSkip(t, context.Background())
}

func connStringOrSkip(t *testing.T, ctx context.Context) string {
	t.Helper()

	if url, ok := os.LookupEnv("TEST_DATABASE_URL"); ok && url != "" {
		return url
	}

	if os.Getenv("TEST_USE_CONTAINERS") != "1" {
		t.Skip("set TEST_DATABASE_URL or TEST_USE_CONTAINERS=1 to run database integration tests")
	}

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("novalearn"),
		tcpostgres.WithUsername("novalearn"),
		tcpostgres.WithPassword("novalearn"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container conn string: %v", err)
	}
	return connString
}
