package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/maps-cli/internal/export"
)

var (
	exportOut     string
	exportFormat  string
	exportNoPrune bool
)

var exportCmd = &cobra.Command{
	Use:         "export <run-id>",
	Short:       "Export the places of a stored run",
	Annotations: map[string]string{configModeKey: "store"},
	Args:        cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		places, err := st.ListPlaces(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		path := exportOut
		if path == "" {
			path = cfg.Export.Path
		}
		def, err := export.ParseFormat(cfg.Export.Format)
		if err != nil {
			return err
		}
		format := export.FormatFromPath(path, def)
		if exportFormat != "" {
			if format, err = export.ParseFormat(exportFormat); err != nil {
				return err
			}
		}

		if path == "-" {
			return export.Write(os.Stdout, places, export.Options{
				Format:        format,
				PruneConstant: cfg.Export.PruneConstant && !exportNoPrune,
			})
		}
		if err := export.Save(path, places, export.Options{
			Format:        format,
			PruneConstant: cfg.Export.PruneConstant && !exportNoPrune,
		}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d places from run %s to %s\n", len(places), truncateID(run.ID), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file, - for stdout (default from config)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: xlsx, csv, json (default from extension)")
	exportCmd.Flags().BoolVar(&exportNoPrune, "no-prune", false, "keep columns that are identical across all rows")
	rootCmd.AddCommand(exportCmd)
}
