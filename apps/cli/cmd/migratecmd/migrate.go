package migratecmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novalearn-io/novalearn/domains/tenants/be/provisioning"
	platformlogging "github.com/novalearn-io/novalearn/platform/go/logging"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

// Command groups fleet migration helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Fleet migration utilities",
	}

	cmd.AddCommand(tenantsCommand())
	return cmd
}

func tenantsCommand() *cobra.Command {
	var (
		databaseURL string
		checkOnly   bool
	)

	c := &cobra.Command{
		Use:   "tenants",
		Short: "Apply pending schema steps to every active tenant (or audit with --check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "cli"})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			registryStore, err := persistence.NewRegistryStore(pool)
			if err != nil {
				return fmt.Errorf("init registry store: %w", err)
			}

			migrator := provisioning.NewMigrator(pool, registryStore, logger)

			var report provisioning.Report
			if checkOnly {
				report, err = migrator.CheckAll(ctx)
			} else {
				report, err = migrator.MigrateAll(ctx)
			}
			if err != nil {
				return fmt.Errorf("run tenant migrations: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, id := range report.Succeeded {
				fmt.Fprintf(out, "ok\t%s\n", id)
			}
			for _, f := range report.Failed {
				fmt.Fprintf(out, "FAIL\t%s\t%v\n", f.TenantID, f.Err)
			}
			fmt.Fprintf(out, "%d succeeded, %d failed\n", len(report.Succeeded), len(report.Failed))

			if !report.Ok() {
				return fmt.Errorf("%d tenant(s) failed", len(report.Failed))
			}
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().BoolVar(&checkOnly, "check", false, "Report drift without applying any changes")
	_ = c.MarkFlagRequired("database-url")

	return c
}
