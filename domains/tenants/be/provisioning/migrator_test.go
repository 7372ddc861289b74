package provisioning

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/platform/go/pgtest"
)

func TestCatalogIsAppendOnlyOrdered(t *testing.T) {
	names := make([]string, 0)
	for _, s := range catalog() {
		names = append(names, s.name)
		require.NotNil(t, s.applied, "step %s needs a check", s.name)
		require.NotNil(t, s.apply, "step %s needs an apply", s.name)
	}

	// Shipped history: append new steps after these, never reorder.
	require.Equal(t, []string{
		"branches table",
		"seed main branch",
		"courses.branch_id column",
		"backfill courses.branch_id",
		"courses.branch_id not null",
		"courses.branch_id foreign key",
		"courses.branch_id index",
		"grades.feedback column",
	}, names)
}

func revertToLegacyShape(t *testing.T, pool *pgxpool.Pool, schemaName string) {
	t.Helper()
	ctx := context.Background()
	for _, stmt := range []string{
		"ALTER TABLE %[1]s.courses DROP COLUMN branch_id",
		"DROP TABLE %[1]s.branches",
		"ALTER TABLE %[1]s.grades DROP COLUMN feedback",
	} {
		_, err := pool.Exec(ctx, fmt.Sprintf(stmt, pgx.Identifier{schemaName}.Sanitize()))
		require.NoError(t, err)
	}
}

func TestMigrateAllBackfillsBranchID(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	slug := pgtest.Slug(t)

	p, store := newProvisioner(t, pool)
	res, err := p.Provision(ctx, slug, "Acme University")
	require.NoError(t, err)

	// Rewind this tenant to the shape it had before the branches steps
	// shipped, with a course that predates them.
	revertToLegacyShape(t, pool, res.SchemaName)
	courseID := uuid.New()
	_, err = pool.Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, code, title) VALUES ($1, 'CS101', 'Intro to CS')",
		pgx.Identifier{res.SchemaName, "courses"}.Sanitize()), courseID)
	require.NoError(t, err)

	m := NewMigrator(pool, store, zap.NewNop())
	report, err := m.MigrateAll(ctx)
	require.NoError(t, err)
	require.Contains(t, report.Succeeded, slug)
	for _, f := range report.Failed {
		require.NotEqual(t, slug, f.TenantID)
	}

	var branchID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT branch_id FROM %s WHERE id = $1",
		pgx.Identifier{res.SchemaName, "courses"}.Sanitize()), courseID).Scan(&branchID))

	var mainID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT id FROM %s WHERE is_main",
		pgx.Identifier{res.SchemaName, "branches"}.Sanitize())).Scan(&mainID))
	require.Equal(t, mainID, branchID)

	var nullable string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT is_nullable FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = 'courses' AND column_name = 'branch_id'`,
		res.SchemaName).Scan(&nullable))
	require.Equal(t, "NO", nullable)
}

func TestMigrateAllIsIdempotent(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	slug := pgtest.Slug(t)

	p, store := newProvisioner(t, pool)
	_, err := p.Provision(ctx, slug, "Acme University")
	require.NoError(t, err)

	m := NewMigrator(pool, store, zap.NewNop())

	for i := 0; i < 2; i++ {
		report, err := m.MigrateAll(ctx)
		require.NoError(t, err)
		require.Contains(t, report.Succeeded, slug, "run %d", i)
	}

	// After migration the drift check is clean for this tenant.
	report, err := m.CheckAll(ctx)
	require.NoError(t, err)
	require.Contains(t, report.Succeeded, slug)
}

func TestMigrateAllIsolatesFailures(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()

	p, store := newProvisioner(t, pool)

	healthy := pgtest.Slug(t)
	broken := pgtest.Slug(t)

	_, err := p.Provision(ctx, healthy, "Healthy College")
	require.NoError(t, err)
	resBroken, err := p.Provision(ctx, broken, "Broken College")
	require.NoError(t, err)

	// Sabotage one tenant so its column step cannot apply.
	_, err = pool.Exec(ctx, fmt.Sprintf("DROP TABLE %s CASCADE",
		pgx.Identifier{resBroken.SchemaName, "courses"}.Sanitize()))
	require.NoError(t, err)

	m := NewMigrator(pool, store, zap.NewNop())
	report, err := m.MigrateAll(ctx)
	require.NoError(t, err)

	require.Contains(t, report.Succeeded, healthy)
	found := false
	for _, f := range report.Failed {
		if f.TenantID == broken {
			found = true
			require.Error(t, f.Err)
		}
	}
	require.True(t, found, "broken tenant must be reported, not skipped")
	require.False(t, report.Ok())
}
