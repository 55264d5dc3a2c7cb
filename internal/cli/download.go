package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/invoicer/internal/app"
	"github.com/xenking/invoicer/internal/domain/invoice"
)

func newDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <order-id>",
		Short: "Fetch a stored invoice",
		Long:  "Copy the stored invoice of an order from the configured storage to a local file, or to stdout with -o -.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadCLIConfig()
			if err != nil {
				return err
			}
			store, err := app.NewObjectStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return errors.Wrap(err, "create object store")
			}

			orderID := args[0]
			key := invoice.Key(orderID)
			body, err := store.Get(cmd.Context(), key)
			if errors.Is(err, invoice.ErrObjectNotFound) {
				return errors.Errorf("no invoice stored for order %s", orderID)
			}
			if err != nil {
				return errors.Wrapf(err, "get %s", key)
			}
			defer func() { _ = body.Close() }()

			if output == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), body)
				return err
			}
			if output == "" {
				output = key
			}
			n, err := writeFile(output, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", output, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file; defaults to the invoice file name, - for stdout")
	return cmd
}

func writeFile(name string, r io.Reader) (int64, error) {
	f, err := os.Create(name)
	if err != nil {
		return 0, errors.Wrap(err, "create output")
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Wrapf(err, "write %s", name)
	}
	return n, nil
}
