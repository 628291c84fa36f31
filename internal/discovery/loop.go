package discovery

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/maps-cli/internal/browser"
	"github.com/sells-group/maps-cli/internal/model"
)

// DefaultAnchorSelector matches result links in the search feed.
const DefaultAnchorSelector = `a[href*="/maps/place/"]`

// LoopConfig tunes a discovery pass.
type LoopConfig struct {
	SearchURL       string
	AnchorSelector  string
	MaxRounds       int
	StallLimit      int
	ScrollDelta     float64
	Settle          time.Duration
	SearchSettle    time.Duration
	NavigateTimeout time.Duration
	SearchTimeout   time.Duration
}

// DefaultLoopConfig returns the settings used against the public maps site.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		SearchURL:       "https://www.google.com/maps",
		AnchorSelector:  DefaultAnchorSelector,
		MaxRounds:       20,
		StallLimit:      5,
		ScrollDelta:     3000,
		Settle:          1500 * time.Millisecond,
		SearchSettle:    2 * time.Second,
		NavigateTimeout: 60 * time.Second,
		SearchTimeout:   10 * time.Second,
	}
}

// Reporter receives the number of results visible so far for a query.
type Reporter func(query string, found int)

// Loop searches one query at a time and scrolls the result feed until the
// cap is reached or the feed stops growing.
type Loop struct {
	page   browser.Page
	cfg    LoopConfig
	report Reporter
}

// NewLoop creates a Loop driving page. report may be nil.
func NewLoop(page browser.Page, cfg LoopConfig, report Reporter) *Loop {
	if cfg.AnchorSelector == "" {
		cfg.AnchorSelector = DefaultAnchorSelector
	}
	if report == nil {
		report = func(string, int) {}
	}
	return &Loop{page: page, cfg: cfg, report: report}
}

// SearchURL returns the search page address for query under base.
func SearchURL(base, query string) string {
	return strings.TrimRight(base, "/") + "/search/" + url.PathEscape(query)
}

// Discover returns up to perQueryCap distinct candidates for query in the
// order they appear. Timeouts end collection early and are not errors; only
// context cancellation is returned.
func (l *Loop) Discover(ctx context.Context, query string, perQueryCap int) ([]model.CandidateRef, error) {
	log := zap.L().With(zap.String("component", "discovery"), zap.String("query", query))
	if perQueryCap <= 0 {
		return nil, nil
	}

	if err := l.page.Navigate(ctx, SearchURL(l.cfg.SearchURL, query), l.cfg.NavigateTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("search navigation failed", zap.Error(err))
		return nil, nil
	}
	if err := browser.Pause(ctx, l.cfg.SearchSettle); err != nil {
		return nil, err
	}

	if err := l.page.WaitFor(ctx, l.cfg.AnchorSelector, l.cfg.SearchTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Info("no results for query", zap.Error(err))
		return nil, nil
	}

	if err := l.scroll(ctx, log, query, perQueryCap); err != nil {
		return nil, err
	}

	return l.collect(ctx, log, query, perQueryCap), nil
}

// scroll runs bounded load rounds until the convergence tracker says stop.
func (l *Loop) scroll(ctx context.Context, log *zap.Logger, query string, perQueryCap int) error {
	conv := newConvergence(perQueryCap, l.cfg.StallLimit)
	for round := 0; round < l.cfg.MaxRounds; round++ {
		if err := l.page.Scroll(ctx, 0, l.cfg.ScrollDelta); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("scroll failed, stop loading", zap.Error(err))
			return nil
		}
		if err := browser.Pause(ctx, l.cfg.Settle); err != nil {
			return err
		}

		anchors, err := l.page.Locate(ctx, l.cfg.AnchorSelector)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("count results failed, stop loading", zap.Error(err))
			return nil
		}
		count := len(anchors)
		if count > 0 {
			l.report(query, count)
		}

		if v := conv.observe(count); v != keepScrolling {
			log.Debug("stop loading",
				zap.Stringer("reason", v),
				zap.Int("round", round+1),
				zap.Int("visible", count),
			)
			return nil
		}
	}
	return nil
}

// collect reads anchor targets in order, folding duplicates by listing key.
func (l *Loop) collect(ctx context.Context, log *zap.Logger, query string, perQueryCap int) []model.CandidateRef {
	anchors, err := l.page.Locate(ctx, l.cfg.AnchorSelector)
	if err != nil {
		log.Warn("read results failed", zap.Error(err))
		return nil
	}

	base, _ := url.Parse(l.page.CurrentURL(ctx))
	seen := make(map[string]bool, len(anchors))
	refs := make([]model.CandidateRef, 0, min(len(anchors), perQueryCap))
	for _, a := range anchors {
		href := resolveHref(base, a.Attribute("href"))
		if href == "" {
			continue
		}
		ref := model.NewCandidateRef(href, query)
		if seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		refs = append(refs, ref)
		if len(refs) >= perQueryCap {
			break
		}
	}

	log.Debug("collected candidates", zap.Int("anchors", len(anchors)), zap.Int("unique", len(refs)))
	return refs
}

func resolveHref(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
