package main

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sells-group/places-catalog/internal/export"
	"github.com/sells-group/places-catalog/internal/model"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every business to a CSV or XLSX file, locally or to gs://bucket/object",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initStoreOnly(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Store.AllBusinesses(ctx)
		if err != nil {
			return eris.Wrap(err, "export: load businesses")
		}
		return runExport(ctx, items, exportFormat, exportOut)
	},
}

// runExport renders items in format and writes them to out.
func runExport(ctx context.Context, items []model.Business, format, out string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if out == "" {
		out = f.Filename()
	}

	_, isGCS, err := export.ParseGCS(out)
	if err != nil {
		return err
	}

	var gcs *storage.Client
	if isGCS {
		var opts []option.ClientOption
		if cfg.Export.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Export.CredentialsFile))
		}
		gcs, err = storage.NewClient(ctx, opts...)
		if err != nil {
			return eris.Wrap(err, "export: create storage client")
		}
		defer gcs.Close() //nolint:errcheck
	}

	// Cancelling before Close discards a partially written object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := export.Open(wctx, gcs, out, f)
	if err != nil {
		return err
	}
	if err := export.Write(w, f, items); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", out)
	}

	zap.L().Info("export complete",
		zap.String("format", string(f)),
		zap.String("out", out),
		zap.Int("businesses", len(items)),
	)
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path or gs://bucket/object (default businesses.<format>)")
	rootCmd.AddCommand(exportCmd)
}
