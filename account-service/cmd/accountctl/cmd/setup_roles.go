package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var setupRolesCmd = &cobra.Command{
	Use:   "setup-roles",
	Short: "Create the default Admin, Manager and Employee roles",
	Long:  `Creates the default roles if they are missing. Existing roles are left untouched.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		s, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		results, err := s.bootstrap.SetupRoles(ctx)
		if err != nil {
			return fmt.Errorf("failed to set up roles: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, r := range results {
			status := "exists"
			if r.Created {
				status = "created"
			}
			fmt.Fprintf(out, "%-10s id=%-4d level=%-4d %s\n", r.Role.Name, r.Role.ID, r.Role.Level, status)
		}
		return nil
	},
}
