package scrape

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const maxSearchResults = 5

// DuckDuckGo queries the DuckDuckGo HTML endpoint (no JS, no bot wall) and
// parses result anchors out of the returned page.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
}

func NewDuckDuckGo(baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}
	return &DuckDuckGo{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
	}
}

// Search returns up to 5 direct result URLs for the query.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]string, error) {
	doc, err := d.fetchResults(ctx, query)
	if err != nil {
		return nil, err
	}

	var results []string
	doc.Find(".result__a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if direct := unwrapResultURL(href); direct != "" {
			results = append(results, direct)
		}
		return len(results) < maxSearchResults
	})

	log.Printf("[search] query=%q results=%d", query, len(results))
	return results, nil
}

// SearchSnippets returns the visible snippet text of the results, joined
// with separators. Used by the email fallback pass.
func (d *DuckDuckGo) SearchSnippets(ctx context.Context, query string) (string, error) {
	doc, err := d.fetchResults(ctx, query)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	doc.Find(".result__snippet").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n---\n")
		}
	})
	return b.String(), nil
}

func (d *DuckDuckGo) fetchResults(ctx context.Context, query string) (*goquery.Document, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Referer", "https://html.duckduckgo.com/")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// unwrapResultURL turns a DuckDuckGo result href into a direct URL.
// Result links are often redirects of the form /l/?uddg=<encoded-url>.
// DuckDuckGo's own URLs (ads, settings) are dropped.
func unwrapResultURL(href string) string {
	if strings.Contains(href, "uddg=") {
		parsed, err := url.Parse(href)
		if err != nil {
			return ""
		}
		direct := parsed.Query().Get("uddg")
		if direct == "" || strings.Contains(direct, "duckduckgo.com") {
			return ""
		}
		return direct
	}
	if strings.Contains(href, "duckduckgo.com") {
		return ""
	}
	return href
}
