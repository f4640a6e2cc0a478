package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eargollo/fraudscan/internal/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, _, err := openStore()
			if err != nil {
				return err
			}
			defer database.Close()
			v, err := db.MigrationVersion(database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s at schema version %d\n", cfg.DBPath, v)
			return nil
		},
	}
}
