package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sapliy/editorial-notifications/pkg/database"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply or roll back the notification schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		newLogger()
		db, err := database.Connect(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		action := "up"
		if len(args) == 1 {
			action = args[0]
		}
		switch action {
		case "down":
			return database.MigrateDown(db, migrateSteps)
		case "version":
			version, dirty, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		}
		return database.MigrateUp(db)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "migrations to roll back with down")
}
