package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/servicedesk/modules/servicedesk"
	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/configuration"
)

type exportOptions struct {
	output string
	filter request.Filter
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write service requests to an xlsx workbook",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !strings.EqualFold(filepath.Ext(opts.output), ".xlsx") {
				return withCode(exitUsage, fmt.Errorf("invalid --output: %q must end in .xlsx", opts.output))
			}
			if s := strings.TrimSpace(opts.filter.Status); s != "" {
				if _, ok := request.ParseStatus(s); !ok {
					return withCode(exitUsage, fmt.Errorf("invalid --status: %q", s))
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.output, "output", "", "Output file (required, .xlsx)")
	cmd.Flags().StringVar(&opts.filter.Status, "status", "", "Only records in this status")
	cmd.Flags().StringVar(&opts.filter.Category, "category", "", "Only records in this category")
	cmd.Flags().StringVar(&opts.filter.From, "from", "", "Preferred date on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.filter.To, "to", "", "Preferred date on or before (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.filter.Search, "q", "", "Search id, customer name and email")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runExport(cmd *cobra.Command, opts exportOptions) error {
	env, err := bootstrap(cmd.Context(), configuration.Use())
	if err != nil {
		return err
	}
	defer env.Close()

	f, err := os.Create(opts.output)
	if err != nil {
		return withCode(exitUsage, err)
	}
	ctx := composables.WithActor(cmd.Context(), servicedesk.SystemActor)
	exporter := env.app.Service(services.ExportService{}).(*services.ExportService)
	n, err := exporter.Export(ctx, opts.filter, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(opts.output)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d service requests to %s\n", n, opts.output)
	return nil
}
