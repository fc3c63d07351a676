package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iota-uz/servicedesk/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the service request schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := bootstrap(cmd.Context(), configuration.Use())
				if err != nil {
					return err
				}
				defer env.Close()
				return env.migrateUp(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := bootstrap(cmd.Context(), configuration.Use())
				if err != nil {
					return err
				}
				defer env.Close()
				if err := env.requireDB(); err != nil {
					return err
				}
				if err := env.app.Migrations().Down(cmd.Context(), env.dialect, env.db); err != nil {
					return withCode(exitDB, err)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := bootstrap(cmd.Context(), configuration.Use())
				if err != nil {
					return err
				}
				defer env.Close()
				if err := env.requireDB(); err != nil {
					return err
				}
				statuses, err := env.app.Migrations().Status(cmd.Context(), env.dialect, env.db)
				if err != nil {
					return withCode(exitDB, err)
				}
				out := cmd.OutOrStdout()
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					fmt.Fprintf(out, "%05d  %-8s %s\n", s.Version, state, s.Path)
				}
				return nil
			},
		},
	)
	return cmd
}
