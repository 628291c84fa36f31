package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/maps-cli/internal/browser"
	"github.com/sells-group/maps-cli/internal/extract"
)

var extractURL string

var extractCmd = &cobra.Command{
	Use:   "extract <detail.html>",
	Short: "Extract a place from a saved detail page",
	Long:  "Runs the record assembler against an HTML snapshot of a listing page. Useful for checking selector overrides.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		html, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "extract: read %s", args[0])
		}

		assembler, err := initAssembler(cfg)
		if err != nil {
			return err
		}
		return extractPlace(cmd.Context(), os.Stdout, assembler, extractURL, string(html))
	},
}

// extractPlace assembles one place from html and writes it as JSON.
func extractPlace(ctx context.Context, w io.Writer, a *extract.Assembler, url, html string) error {
	page, err := browser.NewDocumentPage(url, html)
	if err != nil {
		return eris.Wrap(err, "extract: parse html")
	}

	place, err := a.Assemble(ctx, page)
	if err != nil {
		return eris.Wrap(err, "extract")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(place)
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "source URL to record on the place")
	rootCmd.AddCommand(extractCmd)
}
