package tenantcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novalearn-io/novalearn/domains/tenants/be/provisioning"
	tenantsrepo "github.com/novalearn-io/novalearn/domains/tenants/be/repo"
	tenantsservice "github.com/novalearn-io/novalearn/domains/tenants/be/service"
	platformlogging "github.com/novalearn-io/novalearn/platform/go/logging"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

// Command groups tenant-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant utilities (create/provision)",
	}

	cmd.AddCommand(createCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL     string
		tenantID        string
		institutionName string
		adminEmail      string
		adminFullName   string
		adminPassword   string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema out of band (registry row, baseline tables, admin user)",
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
			identityStore, err := persistence.NewIdentityStore(pool)
			if err != nil {
				return fmt.Errorf("init identity store: %w", err)
			}

			provisioner := provisioning.NewSchemaProvisioner(pool, registryStore, logger)
			svc := tenantsservice.New(tenantsrepo.NewPostgresRepository(registryStore), provisioner, identityStore)

			res, err := svc.Register(ctx, tenantsservice.RegisterInput{
				TenantID:        tenantID,
				InstitutionName: institutionName,
				AdminEmail:      adminEmail,
				AdminFullName:   adminFullName,
				AdminPassword:   adminPassword,
			})
			if err != nil {
				return fmt.Errorf("register tenant: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tenant ready. ID: %s | Schema: %s | Admin: %s (%s)\n",
				res.Tenant.TenantID, res.Tenant.SchemaName, adminEmail, res.AdminID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&tenantID, "tenant-id", "", "Tenant identifier (lowercase slug)")
	c.Flags().StringVar(&institutionName, "institution-name", "", "Institution display name")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "Tenant admin user email")
	c.Flags().StringVar(&adminFullName, "admin-full-name", "", "Tenant admin user full name")
	c.Flags().StringVar(&adminPassword, "admin-password", "", "Tenant admin initial password")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("tenant-id")
	_ = c.MarkFlagRequired("institution-name")
	_ = c.MarkFlagRequired("admin-email")
	_ = c.MarkFlagRequired("admin-full-name")
	_ = c.MarkFlagRequired("admin-password")

	return c
}
