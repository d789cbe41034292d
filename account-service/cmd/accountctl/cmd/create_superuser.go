package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	suUsername string
	suEmail    string
	suPassword string
)

var createSuperuserCmd = &cobra.Command{
	Use:   "create-superuser",
	Short: "Create an active superuser holding the Admin role",
	Long: `Creates an active, verified superuser. The password is taken from --password
or from the ACCOUNTCTL_PASSWORD environment variable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := suPassword
		if password == "" {
			password = os.Getenv("ACCOUNTCTL_PASSWORD")
		}
		if password == "" {
			return errors.New("--password or ACCOUNTCTL_PASSWORD is required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		s, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		user, err := s.bootstrap.CreateSuperuser(ctx, suUsername, suEmail, password)
		if err != nil {
			return fmt.Errorf("failed to create superuser: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %s)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&suUsername, "username", "", "Username of the superuser")
	createSuperuserCmd.Flags().StringVar(&suEmail, "email", "", "Email of the superuser")
	createSuperuserCmd.Flags().StringVar(&suPassword, "password", "", "Password (prefer ACCOUNTCTL_PASSWORD)")
	_ = createSuperuserCmd.MarkFlagRequired("username")
	_ = createSuperuserCmd.MarkFlagRequired("email")
}
