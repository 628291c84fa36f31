// Package browser defines the rendering capability driven by the scrape
// pipeline, with a Chrome implementation and a static HTML implementation.
package browser

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrNavigationTimeout is returned when a page does not load in time.
	ErrNavigationTimeout = eris.New("browser: navigation timeout")
	// ErrWaitTimeout is returned when a selector does not appear in time.
	ErrWaitTimeout = eris.New("browser: wait timeout")
	// ErrSessionInit is returned when no browsing session can be started.
	ErrSessionInit = eris.New("browser: session init failed")
)

// Element is a handle to one matched node. Missing text or attributes read
// as the empty string.
type Element interface {
	Text() string
	Attribute(name string) string
}

// Page is a single rendered page. It is not safe for concurrent use; the
// pipeline drives it from one goroutine.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Locate(ctx context.Context, selector string) ([]Element, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Scroll(ctx context.Context, dx, dy float64) error
	CurrentURL(ctx context.Context) string
}

// Session owns the browser resources behind a Page.
type Session interface {
	Page() Page
	Close() error
}

// Launcher starts a Session. Failures should wrap ErrSessionInit.
type Launcher func(ctx context.Context) (Session, error)

// Pause blocks for d or until ctx is done.
func Pause(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
