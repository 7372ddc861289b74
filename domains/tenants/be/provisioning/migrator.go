package provisioning

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

const defaultMigrateConcurrency = 4

// step is one idempotent unit of tenant schema evolution. applied answers
// whether the step already ran by inspecting the catalogs; apply performs it.
// Steps run strictly in order inside one transaction per tenant.
type step struct {
	name    string
	applied func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error)
	apply   func(ctx context.Context, tx pgx.Tx, schemaName string) error
}

// TenantLister is the slice of the tenant directory the migrator needs.
type TenantLister interface {
	List(ctx context.Context) ([]persistence.TenantRecord, error)
}

// Failure records one tenant whose migration (or drift check) failed.
type Failure struct {
	TenantID string
	Err      error
}

// Report aggregates a fleet-wide migration run. One tenant failing never
// aborts the others; callers decide how loudly to react.
type Report struct {
	Succeeded []string
	Failed    []Failure
}

func (r Report) Ok() bool { return len(r.Failed) == 0 }

// Migrator walks every registered tenant schema through the ordered step
// catalog. All steps are idempotent, so running the migrator against an
// up-to-date fleet is a no-op.
type Migrator struct {
	pool        *pgxpool.Pool
	tenants     TenantLister
	logger      *zap.Logger
	concurrency int
}

func NewMigrator(pool *pgxpool.Pool, tenants TenantLister, logger *zap.Logger) *Migrator {
	if pool == nil {
		panic("migrator requires pool")
	}
	if tenants == nil {
		panic("migrator requires tenant lister")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		pool:        pool,
		tenants:     tenants,
		logger:      logger,
		concurrency: defaultMigrateConcurrency,
	}
}

// MigrateAll applies the step catalog to every tenant, a bounded number in
// parallel. Failed tenants keep their schemas as-is up to the failing step's
// transaction boundary and are reported, never skipped silently next run.
func (m *Migrator) MigrateAll(ctx context.Context) (Report, error) {
	return m.run(ctx, false)
}

// CheckAll reports drift without touching any schema: a tenant with at least
// one unapplied step lands in Failed with a description of what is missing.
func (m *Migrator) CheckAll(ctx context.Context) (Report, error) {
	return m.run(ctx, true)
}

func (m *Migrator) run(ctx context.Context, checkOnly bool) (Report, error) {
	records, err := m.tenants.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list tenants: %w", err)
	}

	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, rec := range records {
		rec := rec
		if rec.Status != persistence.TenantStatusActive {
			continue
		}
		g.Go(func() error {
			var err error
			if checkOnly {
				err = m.checkTenant(gctx, rec)
			} else {
				err = m.migrateTenant(gctx, rec)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, Failure{TenantID: rec.TenantID, Err: err})
				m.logger.Error("tenant migration failed",
					zap.String("tenant_id", rec.TenantID), zap.Error(err))
				return nil
			}
			report.Succeeded = append(report.Succeeded, rec.TenantID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	sort.Strings(report.Succeeded)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].TenantID < report.Failed[j].TenantID })
	return report, nil
}

// migrateTenant runs the full catalog inside one transaction so a tenant is
// never left between steps.
func (m *Migrator) migrateTenant(ctx context.Context, rec persistence.TenantRecord) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT set_config('search_path', $1, true)", rec.SchemaName); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, s := range catalog() {
		done, err := s.applied(ctx, tx, rec.SchemaName)
		if err != nil {
			return fmt.Errorf("step %s: check: %w", s.name, err)
		}
		if done {
			continue
		}
		if err := s.apply(ctx, tx, rec.SchemaName); err != nil {
			return fmt.Errorf("step %s: %w", s.name, err)
		}
		m.logger.Info("migration step applied",
			zap.String("tenant_id", rec.TenantID), zap.String("step", s.name))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// checkTenant reports the first unapplied step as drift.
func (m *Migrator) checkTenant(ctx context.Context, rec persistence.TenantRecord) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT set_config('search_path', $1, true)", rec.SchemaName); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, s := range catalog() {
		done, err := s.applied(ctx, tx, rec.SchemaName)
		if err != nil {
			return fmt.Errorf("step %s: check: %w", s.name, err)
		}
		if !done {
			return fmt.Errorf("schema drift: step %s not applied", s.name)
		}
	}
	return nil
}

// catalog is the ordered evolution history of tenant schemas. Append only;
// never reorder or rewrite entries that shipped.
func catalog() []step {
	return []step{
		{
			name:    "branches table",
			applied: tableExists("branches"),
			apply: execStep(`
				CREATE TABLE IF NOT EXISTS branches (
					id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name       TEXT NOT NULL,
					address    TEXT,
					is_main    BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
					CONSTRAINT branches_name_unique UNIQUE (name)
				)`),
		},
		{
			name: "seed main branch",
			applied: func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
				var exists bool
				err := tx.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM branches WHERE is_main)").Scan(&exists)
				return exists, err
			},
			apply: execStep(`
				INSERT INTO branches (name, is_main)
				SELECT 'Main Campus', TRUE
				WHERE NOT EXISTS (SELECT 1 FROM branches WHERE is_main)`),
		},
		{
			name:    "courses.branch_id column",
			applied: columnExists("courses", "branch_id"),
			apply:   execStep("ALTER TABLE courses ADD COLUMN IF NOT EXISTS branch_id UUID"),
		},
		{
			name: "backfill courses.branch_id",
			applied: func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
				var pending bool
				err := tx.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM courses WHERE branch_id IS NULL)").Scan(&pending)
				return !pending, err
			},
			apply: execStep(`
				UPDATE courses
				SET branch_id = (SELECT id FROM branches WHERE is_main LIMIT 1)
				WHERE branch_id IS NULL`),
		},
		{
			name: "courses.branch_id not null",
			applied: func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
				var nullable string
				err := tx.QueryRow(ctx, `
					SELECT is_nullable FROM information_schema.columns
					WHERE table_schema = $1 AND table_name = 'courses' AND column_name = 'branch_id'`,
					schemaName).Scan(&nullable)
				return nullable == "NO", err
			},
			apply: execStep("ALTER TABLE courses ALTER COLUMN branch_id SET NOT NULL"),
		},
		{
			name:    "courses.branch_id foreign key",
			applied: constraintExists("courses_branch_id_fkey"),
			apply: execStep(`
				ALTER TABLE courses
				ADD CONSTRAINT courses_branch_id_fkey
				FOREIGN KEY (branch_id) REFERENCES branches (id)`),
		},
		{
			name:    "courses.branch_id index",
			applied: indexExists("courses_branch_id_idx"),
			apply:   execStep("CREATE INDEX IF NOT EXISTS courses_branch_id_idx ON courses (branch_id)"),
		},
		{
			name:    "grades.feedback column",
			applied: columnExists("grades", "feedback"),
			apply:   execStep("ALTER TABLE grades ADD COLUMN IF NOT EXISTS feedback TEXT"),
		},
	}
}

func execStep(sql string) func(ctx context.Context, tx pgx.Tx, schemaName string) error {
	return func(ctx context.Context, tx pgx.Tx, schemaName string) error {
		_, err := tx.Exec(ctx, sql)
		return err
	}
}

func tableExists(table string) func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
	return func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM pg_class c
				JOIN pg_namespace n ON n.oid = c.relnamespace
				WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind = 'r'
			)`, schemaName, table).Scan(&exists)
		return exists, err
	}
}

func columnExists(table, column string) func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
	return func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_schema = $1 AND table_name = $2 AND column_name = $3
			)`, schemaName, table, column).Scan(&exists)
		return exists, err
	}
}

func constraintExists(name string) func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
	return func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM pg_constraint con
				JOIN pg_namespace n ON n.oid = con.connamespace
				WHERE n.nspname = $1 AND con.conname = $2
			)`, schemaName, name).Scan(&exists)
		return exists, err
	}
}

func indexExists(name string) func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
	return func(ctx context.Context, tx pgx.Tx, schemaName string) (bool, error) {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM pg_indexes
				WHERE schemaname = $1 AND indexname = $2
			)`, schemaName, name).Scan(&exists)
		return exists, err
	}
}
