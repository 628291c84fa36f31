package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/maps-cli/internal/browser"
	"github.com/sells-group/maps-cli/internal/config"
	"github.com/sells-group/maps-cli/internal/discovery"
	"github.com/sells-group/maps-cli/internal/extract"
	"github.com/sells-group/maps-cli/internal/model"
	"github.com/sells-group/maps-cli/internal/pipeline"
	"github.com/sells-group/maps-cli/internal/resilience"
	"github.com/sells-group/maps-cli/internal/store"
)

// scraper runs one scrape. *pipeline.Pipeline implements it.
type scraper interface {
	Run(ctx context.Context, query string, total int, progress pipeline.Progress) (*pipeline.Result, error)
}

// initAssembler builds the record assembler from the configured selectors.
func initAssembler(c *config.Config) (*extract.Assembler, error) {
	sel := extract.DefaultSelectors()
	if c.Scrape.SelectorsFile != "" {
		loaded, err := extract.LoadSelectors(c.Scrape.SelectorsFile)
		if err != nil {
			return nil, err
		}
		sel = loaded
		zap.L().Info("loaded selector overrides", zap.String("path", c.Scrape.SelectorsFile))
	}
	return extract.NewAssembler(sel, config.Seconds(c.Scrape.ReadyTimeoutSecs)), nil
}

// pipelineConfig maps configuration onto pipeline settings.
func pipelineConfig(c *config.Config) pipeline.Config {
	loop := discovery.DefaultLoopConfig()
	loop.SearchURL = c.Browser.SearchURL
	loop.MaxRounds = c.Scrape.MaxRounds
	loop.StallLimit = c.Scrape.StallLimit
	loop.ScrollDelta = c.Scrape.ScrollDelta
	loop.Settle = config.Millis(c.Scrape.SettleMs)
	loop.SearchSettle = config.Millis(c.Scrape.SearchSettleMs)
	loop.NavigateTimeout = config.Seconds(c.Scrape.NavigateTimeoutSecs)
	loop.SearchTimeout = config.Seconds(c.Scrape.SearchTimeoutSecs)

	return pipeline.Config{
		Loop:          loop,
		PerQueryCap:   c.Scrape.PerQueryCap,
		DetailTimeout: config.Seconds(c.Scrape.DetailTimeoutSecs),
		DetailSettle:  config.Millis(c.Scrape.DetailSettleMs),
		VariantDelay:  config.Millis(c.Scrape.VariantDelayMs),
		VisitDelay:    config.Millis(c.Scrape.VisitDelayMs),
		NavRate:       c.Scrape.NavRate,
		NavRetry:      resilience.NavigationPolicy(c.Scrape.NavRetries),
	}
}

// initPipeline builds a Chrome-backed pipeline from configuration.
func initPipeline() (*pipeline.Pipeline, error) {
	assembler, err := initAssembler(cfg)
	if err != nil {
		return nil, err
	}

	launch := browser.ChromeLauncher(browser.ChromeOptions{
		Headless:     cfg.Browser.Headless,
		UserAgent:    cfg.Browser.UserAgent,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
	})
	return pipeline.New(launch, assembler, pipelineConfig(cfg)), nil
}

// executeRun drives a stored run through the scraper and records the
// outcome. Places gathered before a failure are still saved.
func executeRun(ctx context.Context, st store.Store, s scraper, run *model.Run, progress pipeline.Progress) (*pipeline.Result, error) {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("query", run.Query))

	if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return nil, eris.Wrap(err, "mark run running")
	}

	res, runErr := s.Run(ctx, run.Query, run.Total, progress)

	outcome := model.RunResult{Status: model.RunStatusComplete}
	if res != nil {
		outcome.Candidates = res.Candidates
		outcome.Places = len(res.Places)
	}
	if runErr != nil {
		outcome.Status = model.RunStatusFailed
		outcome.Error = runErr.Error()
	}

	// Record the outcome even if ctx was cancelled mid-run.
	saveCtx := context.WithoutCancel(ctx)
	if res != nil && len(res.Places) > 0 {
		if err := st.SavePlaces(saveCtx, run.ID, res.Places); err != nil {
			log.Error("save places failed", zap.Error(err))
			return res, eris.Wrap(err, "save places")
		}
	}
	if err := st.CompleteRun(saveCtx, run.ID, outcome); err != nil {
		log.Error("complete run failed", zap.Error(err))
		return res, eris.Wrap(err, "complete run")
	}

	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		return res, runErr
	}
	log.Info("run complete",
		zap.Int("candidates", outcome.Candidates),
		zap.Int("places", outcome.Places),
	)
	return res, nil
}

// consoleProgress prints progress lines for an interactive run.
type consoleProgress struct {
	w    io.Writer
	last int
}

func newConsoleProgress(w io.Writer) *consoleProgress {
	return &consoleProgress{w: w, last: -1}
}

func (p *consoleProgress) Stage(s pipeline.State) {
	zap.L().Debug("stage", zap.String("stage", string(s)))
}

func (p *consoleProgress) Message(msg string) {
	_, _ = fmt.Fprintln(p.w, msg)
}

// Fraction prints whole-percent changes only.
func (p *consoleProgress) Fraction(f float64) {
	pct := int(math.Round(f * 100))
	if pct == p.last {
		return
	}
	p.last = pct
	_, _ = fmt.Fprintf(p.w, "Progress: %d%%\n", pct)
}
