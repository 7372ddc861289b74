package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	sqlassets "github.com/novalearn-io/novalearn/database"
)

// MigrateRegistry applies the embedded goose migrations that create the
// shared registry schema (tenant directory and global identities). The
// migrations are versioned and idempotent; the helper is intended for CLI
// bootstrap and tests. Tenant schemas are NOT managed here: they are created
// by the provisioner and evolved by the tenant migrator.
func MigrateRegistry(ctx context.Context, connString string) error {
	if connString == "" {
		return fmt.Errorf("migrate registry: conn string is required")
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("open registry database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(sqlassets.RegistryMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
