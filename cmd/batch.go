package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/maps-cli/internal/config"
	"github.com/sells-group/maps-cli/internal/export"
	"github.com/sells-group/maps-cli/internal/queries"
	"github.com/sells-group/maps-cli/internal/store"
)

var (
	batchLimit    int
	batchDryRun   bool
	batchOutDir   string
	batchFormat   string
	batchNoPrune  bool
	batchFailFast bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run a scrape for every query in a CSV or XLSX file",
	Long: `Reads one query per row (optionally followed by a total) and runs them
one after another, saving each run to the store.

Examples:
  # List the parsed queries without scraping
  maps-cli batch queries.csv --dry-run

  # Scrape the first two queries and write one workbook per query
  maps-cli batch queries.xlsx --limit 2 --out-dir results/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reqs, err := queries.Load(args[0])
		if err != nil {
			return eris.Wrap(err, "batch: load queries")
		}
		if batchLimit > 0 && batchLimit < len(reqs) {
			reqs = reqs[:batchLimit]
		}
		if len(reqs) == 0 {
			return eris.New("batch: no queries found")
		}

		if batchDryRun {
			printBatchPlan(os.Stdout, reqs)
			return nil
		}

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		opts := batchOptions{
			OutDir:   batchOutDir,
			FailFast: batchFailFast,
			Export: export.Options{
				Format:        export.FormatXLSX,
				PruneConstant: cfg.Export.PruneConstant && !batchNoPrune,
			},
		}
		if batchFormat != "" {
			if opts.Export.Format, err = export.ParseFormat(batchFormat); err != nil {
				return err
			}
		}

		p, err := initPipeline()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := runBatch(ctx, os.Stderr, st, p, reqs, opts)
		fmt.Fprintf(os.Stderr, "Batch finished: %d succeeded, %d failed, %d places\n", sum.Succeeded, sum.Failed, sum.Places)
		return err
	},
}

type batchOptions struct {
	OutDir   string
	FailFast bool
	Export   export.Options
}

type batchSummary struct {
	Succeeded int
	Failed    int
	Places    int
	Files     []string
}

// runBatch executes each request in order. Runs share one browser at a
// time, so there is no parallelism here.
func runBatch(ctx context.Context, w io.Writer, st store.Store, s scraper, reqs []queries.Request, opts batchOptions) (batchSummary, error) {
	var sum batchSummary
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return sum, eris.Wrap(err, "batch: create output dir")
		}
	}

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "batch: cancelled")
		}

		total := config.ClampTotal(req.Total)
		_, _ = fmt.Fprintf(w, "[%d/%d] %s (%d places)\n", i+1, len(reqs), req.Query, total)

		run, err := st.CreateRun(ctx, req.Query, total)
		if err != nil {
			return sum, eris.Wrap(err, "batch: create run")
		}

		res, runErr := executeRun(ctx, st, s, run, newConsoleProgress(w))
		if res != nil {
			sum.Places += len(res.Places)
		}
		if runErr != nil {
			sum.Failed++
			zap.L().Warn("batch: query failed",
				zap.String("query", req.Query),
				zap.String("run_id", run.ID),
				zap.Error(runErr),
			)
			if opts.FailFast || ctx.Err() != nil {
				return sum, eris.Wrapf(runErr, "batch: query %q", req.Query)
			}
		} else {
			sum.Succeeded++
		}

		if opts.OutDir == "" || res == nil || len(res.Places) == 0 {
			continue
		}
		path := filepath.Join(opts.OutDir, fmt.Sprintf("%02d-%s.%s", i+1, slugify(req.Query), opts.Export.Format))
		if err := export.Save(path, res.Places, opts.Export); err != nil {
			return sum, err
		}
		sum.Files = append(sum.Files, path)
		_, _ = fmt.Fprintf(w, "Saved %d places to %s\n", len(res.Places), path)
	}
	return sum, nil
}

func printBatchPlan(w io.Writer, reqs []queries.Request) {
	for i, req := range reqs {
		_, _ = fmt.Fprintf(w, "%3d  %-50s %d\n", i+1, req.Query, config.ClampTotal(req.Total))
	}
	_, _ = fmt.Fprintf(w, "%d queries\n", len(reqs))
}

// slugify turns a query into a file-name-safe token.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFKD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "query"
	}
	return out
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max queries to run (0 = all)")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "print the parsed queries and exit")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "write one export file per query into this directory")
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "export format for --out-dir: xlsx, csv, json (default xlsx)")
	batchCmd.Flags().BoolVar(&batchNoPrune, "no-prune", false, "keep columns that are identical across all rows")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "stop at the first failed query")
	rootCmd.AddCommand(batchCmd)
}
