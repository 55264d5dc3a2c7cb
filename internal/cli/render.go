package cli

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/invoicer/internal/app"
	"github.com/xenking/invoicer/internal/domain/invoice"
	"github.com/xenking/invoicer/internal/domain/order"
	"github.com/xenking/invoicer/internal/orderfile"
	"github.com/xenking/invoicer/internal/storage/objectstore"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		outDir      string
		maxQuantity int
	)

	cmd := &cobra.Command{
		Use:   "render <orders.json>",
		Short: "Render invoices from an order file",
		Long: "Validate the orders in a JSON file and render an invoice for each valid one into a local directory. " +
			"Payments are not checked and no order store is touched.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadCLIConfig()
			if err != nil {
				return err
			}
			policy := order.Policy{MaxQuantity: cfg.Pipeline.MaxQuantity}
			if cmd.Flags().Changed("max-quantity") {
				policy.MaxQuantity = maxQuantity
			}

			orders, err := orderfile.ReadFile(args[0])
			if err != nil {
				return err
			}
			store, err := objectstore.NewFS(outDir, "")
			if err != nil {
				return errors.Wrap(err, "open output dir")
			}

			lg := opts.logger(cmd.ErrOrStderr())
			defer func() { _ = lg.Sync() }()

			renderer := app.NewRenderer(cfg.Issuer)
			out := cmd.OutOrStdout()
			var rendered int
			for i := range orders {
				o := &orders[i]
				if err := order.Validate(o, policy); err != nil {
					fmt.Fprintf(out, "skip %s: %v\n", o.ID, err)
					continue
				}
				doc, err := renderer.Render(o)
				if err != nil {
					fmt.Fprintf(out, "fail %s: %v\n", o.ID, err)
					continue
				}
				key := invoice.Key(o.ID)
				if err := store.Put(cmd.Context(), key, doc, invoice.ContentType); err != nil {
					return errors.Wrapf(err, "write %s", key)
				}
				lg.Info("Invoice rendered", zap.String("order_id", o.ID), zap.Int("bytes", len(doc)))
				fmt.Fprintf(out, "ok   %s: %s\n", o.ID, key)
				rendered++
			}
			fmt.Fprintf(out, "%d of %d orders rendered into %s\n", rendered, len(orders), outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "Directory to write invoices to")
	cmd.Flags().IntVar(&maxQuantity, "max-quantity", order.DefaultMaxQuantity, "Per-line quantity above which an order is suspicious")
	return cmd
}
