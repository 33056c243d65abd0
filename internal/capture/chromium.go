// Package capture screenshots a rendered page of the web shell with headless
// Chromium. It is used for visual snapshots of the two views.
package capture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	DefaultWidth      = 1280
	DefaultHeight     = 1600
	DefaultTimeoutSec = 30
)

// ReadySelector matches the page root once the view has been built from a
// loaded snapshot.
const ReadySelector = `[data-ready="true"]`

// Options defines parameters for a capture.
type Options struct {
	// URL of the page, e.g. "http://127.0.0.1:8080/available?city=Turku".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport size in pixels. Zero selects the
	// defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero selects DefaultTimeoutSec.
	Timeout time.Duration
}

// PagePNG navigates headless Chromium to opts.URL, waits until the page
// root reports data-ready="true" and writes a full-page PNG to
// opts.OutputPath.
func PagePNG(parentCtx context.Context, opts Options) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	return nil
}

// PageURL joins the server base ("http://127.0.0.1:8080") with the page path
// for the named view: "mine" or "available". city only applies to the
// available view.
func PageURL(base, page, city string) (string, error) {
	switch page {
	case "", "mine":
		return base + "/", nil
	case "available":
		if city == "" {
			return base + "/available", nil
		}
		return base + "/available?city=" + url.QueryEscape(city), nil
	default:
		return "", fmt.Errorf("capture: unknown page %q", page)
	}
}
