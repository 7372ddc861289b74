package bootstrapcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

// Command groups bootstrap helpers (registry schema, future seed steps).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (tenant registry, global identities)",
	}

	cmd.AddCommand(registryCommand())
	return cmd
}

func registryCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "registry",
		Short: "Apply registry migrations (tenants directory, identities) to the control schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := persistence.MigrateRegistry(context.Background(), databaseURL); err != nil {
				return fmt.Errorf("migrate registry: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Registry schema is up to date.")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}
