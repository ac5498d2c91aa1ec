package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/layer-3/gatekeeper/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres schema and Mongo indexes used by the configured stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Uses(config.DriverPostgres) && cfg.Identity.Driver != config.DriverMongo {
			return errors.New("nothing to migrate: no postgres or mongo store configured")
		}

		b, err := openBackends(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.prepare(cmd.Context()); err != nil {
			return err
		}
		logger.Info().Msg("migration complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
