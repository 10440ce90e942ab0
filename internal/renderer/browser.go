// Package renderer implements the render worker: it consumes render
// requests, produces final rendered HTML through a headless browser, and
// runs the finish sequence.
package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Renderer produces the final rendered HTML for a URL. A returned error
// nacks the message.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

const stableWait = 500 * time.Millisecond

// Browser renders pages in headless Chrome.
type Browser struct {
	browser *rod.Browser
}

// NewBrowser launches headless Chrome and connects to it. bin may be empty
// to let the launcher resolve the browser binary.
func NewBrowser(bin string) (*Browser, error) {
	l := launcher.New().Headless(true)
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &Browser{browser: browser}, nil
}

// Render navigates to the URL, waits for the DOM to settle, and returns the
// page HTML.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitStable(stableWait); err != nil {
		return "", fmt.Errorf("wait for %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html of %s: %w", url, err)
	}

	return html, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	return b.browser.Close()
}
