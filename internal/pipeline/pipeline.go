// Package pipeline runs a maps scrape end to end: query expansion,
// discovery per variant, candidate visits, record assembly and dedup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/maps-cli/internal/browser"
	"github.com/sells-group/maps-cli/internal/discovery"
	"github.com/sells-group/maps-cli/internal/extract"
	"github.com/sells-group/maps-cli/internal/model"
	"github.com/sells-group/maps-cli/internal/resilience"
)

// State is a stage of a run.
type State string

const (
	StateIdle        State = "idle"
	StateExpanding   State = "expanding"
	StateDiscovering State = "discovering"
	StateVisiting    State = "visiting"
	StateAssembling  State = "assembling"
	StateDone        State = "done"
	StateError       State = "error"
)

// Config tunes a run.
type Config struct {
	Loop          discovery.LoopConfig
	PerQueryCap   int
	DetailTimeout time.Duration
	DetailSettle  time.Duration
	VariantDelay  time.Duration // pause between query variants
	VisitDelay    time.Duration // pause after each candidate visit
	NavRate       float64       // ceiling on page navigations per second; 0 disables
	NavRetry      resilience.Policy
}

// DefaultConfig returns the settings used against the public maps site.
func DefaultConfig() Config {
	return Config{
		Loop:          discovery.DefaultLoopConfig(),
		PerQueryCap:   30,
		DetailTimeout: 15 * time.Second,
		DetailSettle:  1500 * time.Millisecond,
		VariantDelay:  2 * time.Second,
		VisitDelay:    time.Second,
		NavRate:       1,
		NavRetry:      resilience.NavigationPolicy(1),
	}
}

// StageResult records how long a stage took.
type StageResult struct {
	Name     State `json:"name"`
	Duration int64 `json:"duration_ms"`
}

// Result is the outcome of one run.
type Result struct {
	Query      string        `json:"query"`
	Total      int           `json:"total"`
	Variants   int           `json:"variants"`
	Candidates int           `json:"candidates"`
	Visited    int           `json:"visited"`
	Skipped    int           `json:"skipped"`
	Places     []model.Place `json:"places"`
	Stages     []StageResult `json:"stages"`
}

// Pipeline drives one browser session per run. Runs on the same Pipeline
// must not overlap.
type Pipeline struct {
	launch    browser.Launcher
	assembler *extract.Assembler
	cfg       Config
}

// New creates a Pipeline.
func New(launch browser.Launcher, assembler *extract.Assembler, cfg Config) *Pipeline {
	return &Pipeline{
		launch:    launch,
		assembler: assembler,
		cfg:       cfg,
	}
}

// run is the state of a single Run call.
type run struct {
	log        *zap.Logger
	progress   Progress
	nav        *rate.Limiter
	state      State
	stageStart time.Time
	elapsed    map[State]time.Duration
	order      []State
	result     *Result
}

// transition moves the run to a new state. Visiting and assembling
// alternate per candidate, so durations accumulate per state.
func (r *run) transition(to State) {
	if r.state == to {
		return
	}
	if r.state != StateIdle {
		if _, ok := r.elapsed[r.state]; !ok {
			r.order = append(r.order, r.state)
		}
		r.elapsed[r.state] += time.Since(r.stageStart)
	}
	r.state = to
	r.stageStart = time.Now()
	r.progress.Stage(to)
}

func (r *run) stages() []StageResult {
	out := make([]StageResult, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, StageResult{Name: s, Duration: r.elapsed[s].Milliseconds()})
	}
	return out
}

// Run scrapes up to total places for query. Per-candidate faults are logged
// and skipped; only a browser that cannot start fails the run. An empty
// result is not an error.
func (p *Pipeline) Run(ctx context.Context, query string, total int, progress Progress) (*Result, error) {
	if query == "" {
		return nil, eris.New("pipeline: query is required")
	}
	if total <= 0 {
		return nil, eris.Errorf("pipeline: total must be positive, got %d", total)
	}
	if progress == nil {
		progress = NopProgress{}
	}

	r := &run{
		log:      zap.L().With(zap.String("query", query), zap.Int("total", total)),
		progress: progress,
		nav:      newNavLimiter(p.cfg.NavRate),
		state:    StateIdle,
		elapsed:  make(map[State]time.Duration),
		result:   &Result{Query: query, Total: total, Places: []model.Place{}},
	}
	r.log.Info("pipeline: starting run")

	sess, err := p.launch(ctx)
	if err != nil {
		r.transition(StateError)
		if !errors.Is(err, browser.ErrSessionInit) {
			err = eris.Wrapf(browser.ErrSessionInit, "pipeline: %v", err)
		}
		return nil, eris.Wrap(err, "pipeline: launch browser")
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.log.Warn("pipeline: close browser failed", zap.Error(cerr))
		}
	}()
	page := sess.Page()

	r.transition(StateExpanding)
	variants := discovery.Expand(query)

	agg := discovery.NewAggregator(total)
	r.transition(StateDiscovering)
	if err := p.discover(ctx, r, page, agg, variants, total); err != nil {
		return r.finish(agg, StateError), eris.Wrap(err, "pipeline: discover")
	}

	if err := p.visit(ctx, r, page, agg); err != nil {
		return r.finish(agg, StateError), eris.Wrap(err, "pipeline: visit")
	}

	res := r.finish(agg, StateDone)
	r.log.Info("pipeline: run complete",
		zap.Int("variants", res.Variants),
		zap.Int("candidates", res.Candidates),
		zap.Int("visited", res.Visited),
		zap.Int("skipped", res.Skipped),
		zap.Int("places", len(res.Places)),
	)
	return res, nil
}

// discover runs the discovery loop per variant until enough unique
// candidates are collected.
func (p *Pipeline) discover(ctx context.Context, r *run, page browser.Page, agg *discovery.Aggregator, variants []string, total int) error {
	perQueryCap := min(p.cfg.PerQueryCap, total)
	if perQueryCap <= 0 {
		perQueryCap = total
	}

	loop := discovery.NewLoop(page, p.cfg.Loop, func(q string, n int) {
		r.progress.Message(fmt.Sprintf("Found %d results for '%s'...", n, q))
	})
	for i, variant := range variants {
		if i > 0 {
			if err := browser.Pause(ctx, p.cfg.VariantDelay); err != nil {
				return err
			}
		}
		if err := r.nav.Wait(ctx); err != nil {
			return err
		}

		r.progress.Message(fmt.Sprintf("Searching: %s", variant))
		refs, err := loop.Discover(ctx, variant, perQueryCap)
		if err != nil {
			return err
		}
		r.result.Variants++

		added := agg.AddCandidates(refs)
		r.progress.Message(fmt.Sprintf("Found %d candidates for '%s' (%d new)", len(refs), variant, added))
		r.log.Debug("pipeline: variant searched",
			zap.String("variant", variant),
			zap.Int("found", len(refs)),
			zap.Int("new", added),
			zap.Int("unique", agg.CandidateCount()),
		)

		if agg.Satisfied() {
			break
		}
	}

	r.result.Candidates = agg.CandidateCount()
	r.progress.Message(fmt.Sprintf("Collected %d unique place URLs", agg.CandidateCount()))
	return nil
}

// visit opens each candidate and assembles a place from it, pausing
// VisitDelay between candidates.
func (p *Pipeline) visit(ctx context.Context, r *run, page browser.Page, agg *discovery.Aggregator) error {
	candidates := agg.Candidates()
	r.progress.Fraction(0)

	for i, c := range candidates {
		if i > 0 {
			if err := browser.Pause(ctx, p.cfg.VisitDelay); err != nil {
				return err
			}
		}

		r.transition(StateVisiting)
		r.progress.Message(fmt.Sprintf("Visiting candidate %d of %d", i+1, len(candidates)))
		if err := p.visitOne(ctx, r, page, agg, c); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.skip(c, err)
		}
		r.progress.Fraction(float64(i+1) / float64(len(candidates)))
	}
	return nil
}

// visitOne navigates to one candidate and records its place. A returned
// error means the candidate is skipped.
func (p *Pipeline) visitOne(ctx context.Context, r *run, page browser.Page, agg *discovery.Aggregator, c model.CandidateRef) error {
	retry := p.cfg.NavRetry
	retry.OnRetry = resilience.LogRetries("navigate", c.URL)
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		if err := r.nav.Wait(ctx); err != nil {
			return err
		}
		return page.Navigate(ctx, c.URL, p.cfg.DetailTimeout)
	})
	if err == nil {
		err = browser.Pause(ctx, p.cfg.DetailSettle)
	}
	if err != nil {
		return err
	}

	r.transition(StateAssembling)
	place, err := p.assembler.Assemble(ctx, page)
	if err != nil {
		return err
	}
	r.result.Visited++

	if agg.AddPlace(place) {
		r.progress.Message(fmt.Sprintf("Added: %s", place.Name))
	} else {
		r.log.Debug("pipeline: place dropped",
			zap.String("url", c.URL),
			zap.String("name", place.Name),
		)
	}
	return nil
}

func (r *run) skip(c model.CandidateRef, err error) {
	r.result.Skipped++
	r.log.Warn("pipeline: skipping candidate",
		zap.String("url", c.URL),
		zap.String("variant", c.Query),
		zap.Error(err),
	)
}

// finish snapshots the aggregator into the result. A cancelled run still
// returns what it gathered.
func (r *run) finish(agg *discovery.Aggregator, final State) *Result {
	r.result.Places = agg.Finalize()
	r.transition(final)
	r.result.Stages = r.stages()
	return r.result
}

// newNavLimiter caps navigations at perSec. Zero or less means no cap.
func newNavLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}
