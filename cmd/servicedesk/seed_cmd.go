package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iota-uz/servicedesk/pkg/configuration"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo service requests; existing ones are left untouched",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := bootstrap(ctx, configuration.Use())
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.migrateUp(ctx); err != nil {
				return err
			}
			if err := env.app.Seeder().Seed(ctx, env.app); err != nil {
				return withCode(exitDB, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
}
