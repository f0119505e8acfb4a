package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, app.conf, false)
			if err != nil {
				return err
			}
			defer store.Close()

			m, ok := store.(migrator)
			if !ok {
				return withCode(exitUsage, fmt.Errorf("store %q has no schema", app.conf.Store))
			}
			applied, err := m.Migrate(ctx)
			if err != nil {
				return withCode(exitDB, fmt.Errorf("migrate: %w", err))
			}
			if applied == nil {
				applied = []int64{}
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"status":  "migrated",
				"store":   app.conf.Store,
				"applied": applied,
			})
		},
	}
}
