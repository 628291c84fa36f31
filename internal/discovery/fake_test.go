package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/maps-cli/internal/browser"
)

// feedPage simulates a result feed that grows as it is scrolled.
type feedPage struct {
	initial   int
	growth    []int // visible count after each scroll; last value repeats
	dupEvery  int   // when > 0, every n-th anchor repeats the previous href
	navErr    error
	scrollErr error

	navigated []string
	scrolls   int
}

func (p *feedPage) visible() int {
	if p.scrolls == 0 {
		return p.initial
	}
	if len(p.growth) == 0 {
		return p.initial
	}
	i := min(p.scrolls, len(p.growth)) - 1
	return p.growth[i]
}

func (p *feedPage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *feedPage) Locate(_ context.Context, _ string) ([]browser.Element, error) {
	n := p.visible()
	elems := make([]browser.Element, 0, n)
	for i := 0; i < n; i++ {
		id := i
		if p.dupEvery > 0 && i > 0 && i%p.dupEvery == 0 {
			id = i - 1
		}
		elems = append(elems, anchor(fmt.Sprintf("https://www.google.com/maps/place/P%d/data=!1s0x%x:0x%x?hl=en", id, id, id)))
	}
	return elems, nil
}

func (p *feedPage) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	if p.visible() == 0 {
		return browser.ErrWaitTimeout
	}
	return nil
}

func (p *feedPage) Scroll(_ context.Context, _, _ float64) error {
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls++
	return nil
}

func (p *feedPage) CurrentURL(_ context.Context) string {
	return "https://www.google.com/maps/search/x"
}

type anchor string

func (a anchor) Text() string { return "" }
func (a anchor) Attribute(name string) string {
	if name == "href" {
		return string(a)
	}
	return ""
}

func testLoopConfig() LoopConfig {
	cfg := DefaultLoopConfig()
	cfg.Settle = 0
	cfg.SearchSettle = 0
	cfg.MaxRounds = 6
	cfg.StallLimit = 2
	return cfg
}
