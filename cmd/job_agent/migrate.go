package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	applied, err := svc.db.Migrate(ctx)
	for _, version := range applied {
		appLogger.Info("applied migration", zap.String("version", version))
	}
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string][]string{"applied": applied})
	}
	if len(applied) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
		return nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations.\n", len(applied))
	return nil
}
