package browser

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Resolver serves the HTML for url along with the URL it resolved to.
type Resolver func(ctx context.Context, url string) (finalURL, html string, err error)

// StaticPage is a Page over pre-rendered HTML. Content never changes after
// navigation, so waits succeed immediately or time out immediately and
// scrolling loads nothing.
type StaticPage struct {
	resolve Resolver
	url     string
	doc     *Document
}

// NewStaticPage creates a StaticPage that loads documents through resolve.
func NewStaticPage(resolve Resolver) *StaticPage {
	return &StaticPage{resolve: resolve}
}

// NewDocumentPage creates a StaticPage already showing html at url.
func NewDocumentPage(url, html string) (*StaticPage, error) {
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return &StaticPage{url: url, doc: doc}, nil
}

func (p *StaticPage) Navigate(ctx context.Context, url string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.resolve == nil {
		return eris.Wrapf(ErrNavigationTimeout, "static: no resolver for %s", url)
	}
	finalURL, html, err := p.resolve(ctx, url)
	if err != nil {
		return eris.Wrapf(err, "static: navigate %s", url)
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return err
	}
	if finalURL == "" {
		finalURL = url
	}
	p.url = finalURL
	p.doc = doc
	return nil
}

func (p *StaticPage) Locate(_ context.Context, selector string) ([]Element, error) {
	if p.doc == nil {
		return nil, nil
	}
	return p.doc.Locate(selector), nil
}

func (p *StaticPage) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.doc != nil && p.doc.Has(selector) {
		return nil
	}
	return eris.Wrapf(ErrWaitTimeout, "static: %s", selector)
}

func (p *StaticPage) Scroll(ctx context.Context, _, _ float64) error {
	return ctx.Err()
}

func (p *StaticPage) CurrentURL(_ context.Context) string {
	return p.url
}

// StaticSession wraps a StaticPage as a Session.
type StaticSession struct {
	page *StaticPage
}

func (s *StaticSession) Page() Page   { return s.page }
func (s *StaticSession) Close() error { return nil }

// StaticLauncher returns a Launcher whose sessions serve pages via resolve.
func StaticLauncher(resolve Resolver) Launcher {
	return func(_ context.Context) (Session, error) {
		return &StaticSession{page: NewStaticPage(resolve)}, nil
	}
}
