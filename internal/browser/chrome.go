package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// snapshotTimeout bounds reading the DOM for a selector lookup.
const snapshotTimeout = 10 * time.Second

// scrollScript scrolls the results feed when present, otherwise the window.
const scrollScript = `(() => {
	const feed = document.querySelector('div[role="feed"]');
	if (feed) { feed.scrollBy(%f, %f); } else { window.scrollBy(%f, %f); }
	return true;
})()`

// ChromeOptions configures the Chrome process behind a ChromeSession.
type ChromeOptions struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

// ChromeSession is a single Chrome tab driven through chromedp.
type ChromeSession struct {
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	page        *chromePage
}

// ChromeLauncher returns a Launcher that starts Chrome with opts.
func ChromeLauncher(opts ChromeOptions) Launcher {
	return func(ctx context.Context) (Session, error) {
		return LaunchChrome(ctx, opts)
	}
}

// LaunchChrome starts a Chrome process and opens one tab.
func LaunchChrome(ctx context.Context, opts ChromeOptions) (*ChromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-plugins", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(zap.S().Debugf),
		chromedp.WithErrorf(zap.S().Debugf),
	)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, eris.Wrapf(ErrSessionInit, "chrome: start browser: %v", err)
	}

	zap.L().Debug("chrome: session started",
		zap.Bool("headless", opts.Headless),
		zap.Int("width", opts.WindowWidth),
		zap.Int("height", opts.WindowHeight),
	)

	return &ChromeSession{
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		page:        &chromePage{tab: tabCtx},
	}, nil
}

func (s *ChromeSession) Page() Page { return s.page }

// Close shuts down the tab and the browser process.
func (s *ChromeSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// chromePage answers lookups from a cached DOM snapshot that is dropped on
// every navigation, wait or scroll.
type chromePage struct {
	tab  context.Context
	snap *Document
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.snap = nil
	err := p.run(ctx, timeout, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(ErrNavigationTimeout, "chrome: %s", url)
	}
	return eris.Wrapf(err, "chrome: navigate %s", url)
}

func (p *chromePage) Locate(ctx context.Context, selector string) ([]Element, error) {
	if p.snap == nil {
		var html string
		if err := p.run(ctx, snapshotTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, eris.Wrap(ErrWaitTimeout, "chrome: snapshot")
			}
			return nil, eris.Wrap(err, "chrome: snapshot")
		}
		doc, err := ParseDocument(html)
		if err != nil {
			return nil, err
		}
		p.snap = doc
	}
	return p.snap.Locate(selector), nil
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	p.snap = nil
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(ErrWaitTimeout, "chrome: %s", selector)
	}
	return eris.Wrapf(err, "chrome: wait %s", selector)
}

func (p *chromePage) Scroll(ctx context.Context, dx, dy float64) error {
	p.snap = nil
	script := fmt.Sprintf(scrollScript, dx, dy, dx, dy)
	if err := p.run(ctx, snapshotTimeout, chromedp.Evaluate(script, nil)); err != nil {
		return eris.Wrap(err, "chrome: scroll")
	}
	return nil
}

func (p *chromePage) CurrentURL(ctx context.Context) string {
	var loc string
	if err := p.run(ctx, snapshotTimeout, chromedp.Location(&loc)); err != nil {
		zap.L().Debug("chrome: read location failed", zap.Error(err))
		return ""
	}
	return loc
}
