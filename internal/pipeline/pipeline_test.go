package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/maps-cli/internal/browser"
	"github.com/sells-group/maps-cli/internal/discovery"
	"github.com/sells-group/maps-cli/internal/extract"
	"github.com/sells-group/maps-cli/internal/resilience"
)

const searchBase = "https://maps.test/maps"

func testConfig() Config {
	loop := discovery.DefaultLoopConfig()
	loop.SearchURL = searchBase
	loop.MaxRounds = 3
	loop.StallLimit = 1
	loop.Settle = 0
	loop.SearchSettle = 0
	return Config{
		Loop:          loop,
		PerQueryCap:   30,
		DetailTimeout: time.Second,
		NavRetry:      resilience.Policy{Attempts: 1},
	}
}

func searchHTML(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div role="feed">`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<a class="hfpxzc" href="/maps/place/Place+%d/data=!4m2!1s0x%x:0x%x?hl=en">Place %d</a>`, i, i+1, i+1, i)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func detailHTML(name string) string {
	return fmt.Sprintf(`<html><body>
<h1 class="DUwDvf">%s</h1>
<div jsaction="pane.rating.more"><span aria-hidden="true">4.6</span></div>
<span aria-label="210 reviews">4.6(210)</span>
<button data-item-id="address"><div>1 Main St</div></button>
</body></html>`, name)
}

// fakeSite serves a fixed search page for every query and one detail page
// per listing.
type fakeSite struct {
	anchors int
	detail  func(url string) (string, error)

	mu        sync.Mutex
	searches  int
	detailHit int
	searchAt  []time.Time
	detailAt  []time.Time
}

func (s *fakeSite) resolve(_ context.Context, url string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.HasPrefix(url, searchBase+"/search/") {
		s.searches++
		s.searchAt = append(s.searchAt, time.Now())
		return url, searchHTML(s.anchors), nil
	}
	s.detailHit++
	s.detailAt = append(s.detailAt, time.Now())
	if s.detail != nil {
		html, err := s.detail(url)
		return url, html, err
	}
	name := url[strings.Index(url, "/place/")+len("/place/"):]
	name = strings.ReplaceAll(name[:strings.Index(name, "/")], "+", " ")
	return url, detailHTML(name), nil
}

type recordingProgress struct {
	stages    []State
	messages  []string
	fractions []float64
}

func (p *recordingProgress) Stage(s State)      { p.stages = append(p.stages, s) }
func (p *recordingProgress) Message(m string)   { p.messages = append(p.messages, m) }
func (p *recordingProgress) Fraction(f float64) { p.fractions = append(p.fractions, f) }

func newTestPipeline(site *fakeSite) *Pipeline {
	return New(browser.StaticLauncher(site.resolve), extract.NewAssembler(extract.DefaultSelectors(), time.Second), testConfig())
}

func TestRun_StopsAtTarget(t *testing.T) {
	site := &fakeSite{anchors: 12}
	progress := &recordingProgress{}

	res, err := newTestPipeline(site).Run(context.Background(), "coffee", 10, progress)
	require.NoError(t, err)

	require.Len(t, res.Places, 10)
	seen := make(map[string]bool)
	for _, p := range res.Places {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.SourceURL)
		assert.False(t, seen[p.SourceURL], "duplicate url %s", p.SourceURL)
		seen[p.SourceURL] = true
	}
	assert.Equal(t, "Place 0", res.Places[0].Name)
	assert.Equal(t, 1, site.searches, "first variant already satisfies the target")
	assert.Equal(t, 1, res.Variants)
	assert.Equal(t, 10, res.Candidates)
	assert.Equal(t, 10, res.Visited)
	assert.Zero(t, res.Skipped)

	assert.Equal(t, StateExpanding, progress.stages[0])
	assert.Equal(t, StateDiscovering, progress.stages[1])
	assert.Equal(t, StateDone, progress.stages[len(progress.stages)-1])
	assert.Contains(t, progress.messages, "Searching: coffee")
	assert.Contains(t, progress.messages, "Visiting candidate 10 of 10")
	assert.Contains(t, progress.messages, "Added: Place 9")
	require.NotEmpty(t, progress.fractions)
	assert.InDelta(t, 1.0, progress.fractions[len(progress.fractions)-1], 0.0001)
	for i := 1; i < len(progress.fractions); i++ {
		assert.GreaterOrEqual(t, progress.fractions[i], progress.fractions[i-1])
	}
}

func TestRun_ExhaustsVariantsWhenShort(t *testing.T) {
	site := &fakeSite{anchors: 12}

	res, err := newTestPipeline(site).Run(context.Background(), "coffee", 20, nil)
	require.NoError(t, err)

	assert.Len(t, res.Places, 12)
	assert.Equal(t, discovery.VariantCount(), site.searches)
	assert.Equal(t, 12, site.detailHit, "each listing visited once")
}

func TestRun_PausesAfterEachVisit(t *testing.T) {
	site := &fakeSite{anchors: 3}
	cfg := testConfig()
	cfg.DetailSettle = 60 * time.Millisecond
	cfg.VisitDelay = 40 * time.Millisecond
	p := New(browser.StaticLauncher(site.resolve), extract.NewAssembler(extract.DefaultSelectors(), time.Second), cfg)

	res, err := p.Run(context.Background(), "coffee", 3, nil)
	require.NoError(t, err)
	require.Len(t, res.Places, 3)

	require.Len(t, site.detailAt, 3)
	for i := 1; i < len(site.detailAt); i++ {
		gap := site.detailAt[i].Sub(site.detailAt[i-1])
		assert.GreaterOrEqual(t, gap, cfg.DetailSettle+cfg.VisitDelay, "visit %d started %v after the previous one", i+1, gap)
	}
}

func TestRun_PausesBetweenVariants(t *testing.T) {
	site := &fakeSite{anchors: 1}
	cfg := testConfig()
	cfg.VariantDelay = 25 * time.Millisecond
	p := New(browser.StaticLauncher(site.resolve), extract.NewAssembler(extract.DefaultSelectors(), time.Second), cfg)

	_, err := p.Run(context.Background(), "coffee", 10, nil)
	require.NoError(t, err)

	require.Len(t, site.searchAt, discovery.VariantCount())
	for i := 1; i < len(site.searchAt); i++ {
		assert.GreaterOrEqual(t, site.searchAt[i].Sub(site.searchAt[i-1]), cfg.VariantDelay)
	}
}

func TestRun_NavRateCapsNavigations(t *testing.T) {
	site := &fakeSite{anchors: 3}
	cfg := testConfig()
	cfg.NavRate = 20 // one every 50ms
	p := New(browser.StaticLauncher(site.resolve), extract.NewAssembler(extract.DefaultSelectors(), time.Second), cfg)

	start := time.Now()
	_, err := p.Run(context.Background(), "coffee", 3, nil)
	require.NoError(t, err)

	// One search and three detail pages: the first is free, three wait.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestRun_DetailNeverReady(t *testing.T) {
	site := &fakeSite{
		anchors: 12,
		detail: func(string) (string, error) {
			return `<html><body><div>loading</div></body></html>`, nil
		},
	}

	res, err := newTestPipeline(site).Run(context.Background(), "coffee", 5, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Places)
	assert.NotNil(t, res.Places)
	assert.Equal(t, 5, res.Skipped)
	assert.Zero(t, res.Visited)
}

func TestRun_NavigationFailureSkipped(t *testing.T) {
	site := &fakeSite{anchors: 4}
	site.detail = func(url string) (string, error) {
		if strings.Contains(url, "Place+1/") {
			return "", errors.New("connection refused")
		}
		name := url[strings.Index(url, "/place/")+len("/place/"):]
		return detailHTML(strings.ReplaceAll(name[:strings.Index(name, "/")], "+", " ")), nil
	}

	res, err := newTestPipeline(site).Run(context.Background(), "coffee", 4, nil)
	require.NoError(t, err)

	require.Len(t, res.Places, 3)
	assert.Equal(t, 1, res.Skipped)
	for _, p := range res.Places {
		assert.NotEqual(t, "Place 1", p.Name)
	}
}

func TestRun_DuplicateNamesDropped(t *testing.T) {
	site := &fakeSite{
		anchors: 6,
		detail: func(string) (string, error) {
			return detailHTML("Same Cafe"), nil
		},
	}

	res, err := newTestPipeline(site).Run(context.Background(), "coffee", 6, nil)
	require.NoError(t, err)

	require.Len(t, res.Places, 1)
	assert.Equal(t, "Same Cafe", res.Places[0].Name)
	assert.Equal(t, 6, res.Visited)
}

func TestRun_NoResults(t *testing.T) {
	site := &fakeSite{anchors: 0}

	res, err := newTestPipeline(site).Run(context.Background(), "nowhere", 10, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Places)
	assert.Zero(t, res.Candidates)
	assert.Equal(t, discovery.VariantCount(), res.Variants)
}

func TestRun_SessionInitFailure(t *testing.T) {
	launch := func(context.Context) (browser.Session, error) {
		return nil, errors.New("chrome not found")
	}
	progress := &recordingProgress{}

	p := New(launch, extract.NewAssembler(extract.DefaultSelectors(), time.Second), testConfig())
	res, err := p.Run(context.Background(), "coffee", 10, progress)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, browser.ErrSessionInit))
	assert.Equal(t, []State{StateError}, progress.stages)
}

func TestRun_Validation(t *testing.T) {
	p := newTestPipeline(&fakeSite{})

	_, err := p.Run(context.Background(), "", 10, nil)
	assert.Error(t, err)

	_, err = p.Run(context.Background(), "coffee", 0, nil)
	assert.Error(t, err)
}

func TestRun_CancelledReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site := &fakeSite{anchors: 5}
	visits := 0
	site.detail = func(url string) (string, error) {
		visits++
		if visits == 3 {
			cancel()
		}
		return detailHTML(fmt.Sprintf("Place %d", visits)), nil
	}

	res, err := newTestPipeline(site).Run(ctx, "coffee", 5, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Len(t, res.Places, 2)
}

func TestRun_StagesTimed(t *testing.T) {
	res, err := newTestPipeline(&fakeSite{anchors: 2}).Run(context.Background(), "coffee", 2, nil)
	require.NoError(t, err)

	names := make([]State, 0, len(res.Stages))
	for _, s := range res.Stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []State{StateExpanding, StateDiscovering, StateVisiting, StateAssembling}, names)
}
