package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heshamhussin961-design/family-tree/pkg/composables"
	"github.com/heshamhussin961-design/family-tree/pkg/configuration"
)

type cliApp struct {
	envFiles []string
	conf     *configuration.Configuration
}

func newRootCmd() *cobra.Command {
	app := &cliApp{}
	cmd := &cobra.Command{
		Use:           "family-import",
		Short:         "Import coded family tree sheets and tree images into the family registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := configuration.Load(app.envFiles)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
			}
			app.conf = conf
			ctx := composables.WithLogger(cmd.Context(), logrus.NewEntry(conf.Logger()))
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.conf != nil {
				app.conf.Unload()
			}
		},
	}
	cmd.PersistentFlags().StringSliceVar(&app.envFiles, "env", []string{".env", ".env.local"}, "Env files to load")

	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newBatchCmd(app))
	cmd.AddCommand(newVisionCmd(app))
	cmd.AddCommand(newMigrateCmd(app))
	cmd.AddCommand(newLineageCmd(app))
	cmd.AddCommand(newChildrenCmd(app))
	cmd.AddCommand(newRootsCmd(app))
	cmd.AddCommand(newSearchCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
