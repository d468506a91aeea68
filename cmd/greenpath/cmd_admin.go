package main

import (
	"fmt"
	"strings"

	"greenpath/internal/api"
	"greenpath/internal/nav"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var newUser api.NewUser

// adminCmd groups administrator pages
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator tasks",
}

var adminCreateUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user account",
	Long: `Create a user account (administrators only).

Roles: Admin, Employee, Client, Consultant
Default access level: view, edit

Example:
  greenpath admin create-user --name "Ada" --email ada@example.com \
    --password s3cret! --role Consultant --access edit`,
	RunE: runAdminCreateUser,
}

func init() {
	adminCreateUserCmd.Flags().StringVar(&newUser.Name, "name", "", "Full name (required)")
	adminCreateUserCmd.Flags().StringVar(&newUser.Email, "email", "", "Email address (required)")
	adminCreateUserCmd.Flags().StringVar(&newUser.Password, "password", "", "Initial password (required)")
	adminCreateUserCmd.Flags().StringVar(&newUser.Role, "role", "Employee", "Role: Admin, Employee, Client or Consultant")
	adminCreateUserCmd.Flags().StringVar(&newUser.DefaultAccessLevel, "access", "view", "Default access level: view or edit")

	adminCmd.AddCommand(adminCreateUserCmd)
}

func runAdminCreateUser(cmd *cobra.Command, args []string) error {
	user, err := client.CreateUser(cmd.Context(), newUser)
	switch {
	case errors.Is(err, api.ErrEmailExists):
		return fmt.Errorf("a user with email %s already exists", strings.ToLower(strings.TrimSpace(newUser.Email)))
	case errors.Is(err, api.ErrInvalidPayload):
		return fmt.Errorf("check the form: %w", err)
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", user.Role))
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s <%s> (id %s, %s, %s access)\n",
		user.Name, user.Email, user.ID, user.Role, user.DefaultAccessLevel)
	fmt.Fprintf(cmd.OutOrStdout(), "Next: greenpath go %s\n", nav.Login.Path)
	return nil
}
