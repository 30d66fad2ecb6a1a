package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := loadBase()
			if err != nil {
				return err
			}
			defer log.Close()
			defer db.Close()

			if err := db.Migrate(context.Background()); err != nil {
				log.Error("Migration failed: %v", err)
				return err
			}

			log.Info("Schema is up to date")
			return nil
		},
	}
}
