package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
)

// maxContactLinks caps the harvest at the homepage plus three sub-pages.
const maxContactLinks = 4

// contactKeywords mark anchors worth visiting: matched against both the
// anchor text and the href.
var contactKeywords = []string{"contact", "about", "location", "team", "connect", "회사소개", "연락처"}

// PageFetcher loads pages over plain HTTP and extracts contact-relevant
// links and visible text. Transient fetch failures are retried with
// exponential backoff before giving up.
type PageFetcher struct {
	client *http.Client
}

func NewPageFetcher() *PageFetcher {
	return &PageFetcher{client: &http.Client{Timeout: 20 * time.Second}}
}

// CollectContactLinks fetches the homepage and returns it plus the anchors
// whose text or href matches a contact keyword, resolved to absolute URLs.
// The homepage is always first; the list is capped at 4 URLs.
func (f *PageFetcher) CollectContactLinks(ctx context.Context, homepageURL string) ([]string, error) {
	base, err := url.Parse(homepageURL)
	if err != nil {
		return nil, fmt.Errorf("parse homepage url: %w", err)
	}

	doc, err := f.fetchDoc(ctx, homepageURL)
	if err != nil {
		return nil, err
	}

	links := []string{homepageURL}
	seen := map[string]bool{homepageURL: true}

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		hrefLower := strings.ToLower(href)

		if !matchesKeyword(text) && !matchesKeyword(hrefLower) {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		full := base.ResolveReference(ref)
		if full.Scheme != "http" && full.Scheme != "https" {
			return true // mailto:, tel:, javascript:
		}
		abs := full.String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
		return len(links) < maxContactLinks
	})

	return links, nil
}

// FetchVisibleText returns the page's visible body text with scripts and
// styles stripped and whitespace collapsed.
func (f *PageFetcher) FetchVisibleText(ctx context.Context, pageURL string) (string, error) {
	doc, err := f.fetchDoc(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	return strings.Join(strings.Fields(text), " "), nil
}

func matchesKeyword(s string) bool {
	for _, k := range contactKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func (f *PageFetcher) fetchDoc(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("page returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("page returned status %d", resp.StatusCode))
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 10 * time.Second
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, 2), ctx)

	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return doc, nil
}
