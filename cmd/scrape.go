package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/maps-cli/internal/config"
	"github.com/sells-group/maps-cli/internal/export"
	"github.com/sells-group/maps-cli/internal/model"
)

var (
	scrapeTotal   int
	scrapeOut     string
	scrapeFormat  string
	scrapeSave    bool
	scrapeNoPrune bool
)

var scrapeCmd = &cobra.Command{
	Use:         "scrape <query>",
	Short:       "Scrape places matching a search query",
	Long:        "Searches the query and its variants, visits each discovered listing, and writes the unique places to a file.",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{configModeKey: "scrape"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return eris.New("scrape: query is required")
		}
		total := config.ClampTotal(scrapeTotal)
		if total != scrapeTotal && scrapeTotal != 0 {
			zap.L().Warn("total clamped", zap.Int("requested", scrapeTotal), zap.Int("total", total))
		}

		p, err := initPipeline()
		if err != nil {
			return err
		}
		progress := newConsoleProgress(os.Stderr)

		var places []model.Place
		if scrapeSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			run, err := st.CreateRun(ctx, query, total)
			if err != nil {
				return eris.Wrap(err, "scrape: create run")
			}
			fmt.Fprintf(os.Stderr, "Run %s\n", run.ID)

			res, err := executeRun(ctx, st, p, run, progress)
			if res != nil {
				places = res.Places
			}
			if err != nil {
				if len(places) == 0 {
					return err
				}
				zap.L().Warn("scrape: run ended early, exporting partial results", zap.Error(err))
			}
		} else {
			res, err := p.Run(ctx, query, total, progress)
			if res != nil {
				places = res.Places
			}
			if err != nil {
				if len(places) == 0 {
					return eris.Wrap(err, "scrape")
				}
				zap.L().Warn("scrape: run ended early, exporting partial results", zap.Error(err))
			}
		}

		return writeResults(places)
	},
}

// writeResults exports places using flag overrides on top of configuration.
func writeResults(places []model.Place) error {
	if len(places) == 0 {
		fmt.Fprintln(os.Stderr, "No results found.")
		return nil
	}

	path := scrapeOut
	if path == "" {
		path = cfg.Export.Path
	}
	def, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}
	format := export.FormatFromPath(path, def)
	if scrapeFormat != "" {
		if format, err = export.ParseFormat(scrapeFormat); err != nil {
			return err
		}
	}

	opts := export.Options{
		Format:        format,
		PruneConstant: cfg.Export.PruneConstant && !scrapeNoPrune,
	}
	if err := export.Save(path, places, opts); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved %d places to %s\n", len(places), path)
	return nil
}

func init() {
	scrapeCmd.Flags().IntVarP(&scrapeTotal, "total", "n", config.DefaultTotal, fmt.Sprintf("number of places to collect (%d-%d)", config.MinTotal, config.MaxTotal))
	scrapeCmd.Flags().StringVarP(&scrapeOut, "out", "o", "", "output file (default from config)")
	scrapeCmd.Flags().StringVar(&scrapeFormat, "format", "", "output format: xlsx, csv, json (default from extension)")
	scrapeCmd.Flags().BoolVar(&scrapeSave, "save", true, "persist the run and its places to the store")
	scrapeCmd.Flags().BoolVar(&scrapeNoPrune, "no-prune", false, "keep columns that are identical across all rows")
	rootCmd.AddCommand(scrapeCmd)
}
