package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/types"
)

var (
	userEmail string
	userName  string
	userID    string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a user and print its ID",
	RunE:  runUserCreate,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a user with their profile and evaluations",
	RunE:  runUserDelete,
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "Display name (required)")
	_ = userCreateCmd.MarkFlagRequired("name")

	userDeleteCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = userDeleteCmd.MarkFlagRequired("user")

	userCmd.AddCommand(userCreateCmd, userDeleteCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	req := &types.CreateUserRequest{
		Email: strings.TrimSpace(userEmail),
		Name:  strings.TrimSpace(userName),
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	ctx := cmd.Context()
	svc, err := openServices(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	id, err := svc.db.CreateUser(ctx, req.Email, req.Name)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"id": id.String(), "email": req.Email, "name": req.Name})
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), id.String())
	return nil
}

func runUserDelete(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.db.DeleteUser(ctx, userID); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s.\n", userID)
	return nil
}
