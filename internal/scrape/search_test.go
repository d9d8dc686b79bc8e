package scrape_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"contact-harvester/internal/scrape"
)

func resultHTML(entries ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, e := range entries {
		b.WriteString(e)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func redirectResult(target, title, snippet string) string {
	return fmt.Sprintf(
		`<div class="result"><a class="result__a" href="/l/?uddg=%s&rut=abc">%s</a><div class="result__snippet">%s</div></div>`,
		url.QueryEscape(target), title, snippet)
}

func TestDuckDuckGo_Search_UnwrapsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil || r.Form.Get("q") != "Acme Co" {
			t.Errorf("expected form q=Acme Co, got %v", r.Form)
		}
		fmt.Fprint(w, resultHTML(
			redirectResult("https://acme.example/", "Acme Co", "Official site of Acme"),
			redirectResult("https://wiki.example/acme", "Acme - Wiki", "Acme is a company"),
		))
	}))
	defer srv.Close()

	d := scrape.NewDuckDuckGo(srv.URL)
	got, err := d.Search(context.Background(), "Acme Co")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	want := []string{"https://acme.example/", "https://wiki.example/acme"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDuckDuckGo_Search_CapsAtFiveAndFiltersOwnLinks(t *testing.T) {
	var entries []string
	// an internal duckduckgo link must be dropped
	entries = append(entries, `<div class="result"><a class="result__a" href="https://duckduckgo.com/settings">settings</a></div>`)
	for i := 0; i < 8; i++ {
		entries = append(entries, redirectResult(fmt.Sprintf("https://site%d.example/", i), "t", "s"))
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultHTML(entries...))
	}))
	defer srv.Close()

	d := scrape.NewDuckDuckGo(srv.URL)
	got, err := d.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %d: %v", len(got), got)
	}
	for _, u := range got {
		if strings.Contains(u, "duckduckgo.com") {
			t.Fatalf("expected duckduckgo links filtered, got %s", u)
		}
	}
}

func TestDuckDuckGo_Search_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultHTML())
	}))
	defer srv.Close()

	d := scrape.NewDuckDuckGo(srv.URL)
	got, err := d.Search(context.Background(), "nothing at all")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}

func TestDuckDuckGo_SearchSnippets_JoinsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultHTML(
			redirectResult("https://acme.example/", "Acme", "Reach us at info@acme.example"),
			redirectResult("https://other.example/", "Other", "Second snippet"),
		))
	}))
	defer srv.Close()

	d := scrape.NewDuckDuckGo(srv.URL)
	got, err := d.SearchSnippets(context.Background(), `"Acme Co" contact email address`)
	if err != nil {
		t.Fatalf("snippets: %v", err)
	}
	if !strings.Contains(got, "info@acme.example") || !strings.Contains(got, "Second snippet") {
		t.Fatalf("expected both snippets in output, got %q", got)
	}
}
