package cli

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/xenking/invoicer/internal/app"
	"github.com/xenking/invoicer/internal/domain/pipeline"
	"github.com/xenking/invoicer/internal/tui"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one invoicing batch",
		Long: "Process every order that has no invoice yet: validate it, check its payment, " +
			"render the invoice and publish it to the configured storage.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadCLIConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			lg := opts.logger(cmd.ErrOrStderr())
			defer func() { _ = lg.Sync() }()

			svc, err := app.NewService(ctx, lg, otel.GetTracerProvider(), otel.GetMeterProvider(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.Pipeline.Run(ctx)
			if err != nil {
				return errors.Wrap(err, "process orders")
			}
			return printReport(cmd, report, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the batch report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, report *pipeline.Report, jsonOutput bool) error {
	if !jsonOutput {
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderReport(report))
		return nil
	}
	data, err := report.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
