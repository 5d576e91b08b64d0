package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders the page in headless Chrome before extracting text.
// Needed for SPA job boards (Greenhouse, Lever, Workday) that ship an empty
// HTML shell to plain HTTP clients.
type BrowserFetcher struct {
	Timeout time.Duration
}

// NewBrowserFetcher returns a chromedp-backed fetcher.
func NewBrowserFetcher() *BrowserFetcher {
	return &BrowserFetcher{Timeout: 20 * time.Second}
}

var browserWS = regexp.MustCompile(`\s+`)

// FetchText navigates to the URL, waits for the body to render, and returns
// the page's inner text. The same MinExtractedLength floor applies.
func (f *BrowserFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(userAgent),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var text string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser fetch failed: %w", err)
	}

	text = browserWS.ReplaceAllString(text, " ")
	if len(text) < MinExtractedLength {
		return "", fmt.Errorf("insufficient rendered text (%d chars) from %s", len(text), rawURL)
	}
	return text, nil
}
