// Package ingestion fetches job postings from URLs and extracts plain text
// for downstream JD extraction.
package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MinExtractedLength is the floor below which a fetched page is useless
	// for JD extraction (SPA shells, bot walls, error pages).
	MinExtractedLength = 120

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"

	fetchTimeout = 8 * time.Second
)

var (
	urlPattern = regexp.MustCompile(`(?i)https?://\S+`)
	wsPattern  = regexp.MustCompile(`\s+`)
)

// FirstURL returns the first HTTP(S) URL in text, or "" when there is none.
func FirstURL(text string) string {
	return urlPattern.FindString(text)
}

// Fetcher retrieves page text for a URL. The plain HTTP fetcher is the
// default; the chromedp fetcher handles JS-rendered job boards.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher fetches with a plain HTTP client and extracts visible text
// with goquery.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher with the default timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: fetchTimeout}}
}

// FetchText downloads the page and returns its visible text. Pages yielding
// less than MinExtractedLength characters are rejected: that is a rendering
// or access problem, not a job posting.
func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	text := ExtractVisibleText(doc)
	if len(text) < MinExtractedLength {
		return "", fmt.Errorf("insufficient extracted text (%d chars) from %s", len(text), rawURL)
	}
	return text, nil
}

// ExtractVisibleText strips script/style/nav chrome and collapses whitespace.
func ExtractVisibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return strings.TrimSpace(wsPattern.ReplaceAllString(text, " "))
}
