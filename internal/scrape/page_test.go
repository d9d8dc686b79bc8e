package scrape_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"contact-harvester/internal/scrape"
)

func TestPageFetcher_CollectContactLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/contact">Contact us</a>
<a href="/about">About</a>
<a href="/pricing">Pricing</a>
<a href="mailto:info@acme.example">Contact email</a>
<a href="http://partners.example/team">Our team</a>
<a href="/contact">Contact us again</a>
</body></html>`)
	}))
	defer srv.Close()

	f := scrape.NewPageFetcher()
	got, err := f.CollectContactLinks(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	want := []string{
		srv.URL,
		srv.URL + "/contact",
		srv.URL + "/about",
		"http://partners.example/team",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("link %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPageFetcher_CollectContactLinks_CapsAtFour(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/contact">Contact</a>
<a href="/about">About</a>
<a href="/team">Team</a>
<a href="/locations">Location list</a>
<a href="/connect">Connect</a>
</body></html>`)
	}))
	defer srv.Close()

	f := scrape.NewPageFetcher()
	got, err := f.CollectContactLinks(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected homepage + 3 sub-pages, got %d: %v", len(got), got)
	}
	if got[0] != srv.URL {
		t.Fatalf("expected homepage first, got %s", got[0])
	}
}

func TestPageFetcher_CollectContactLinks_MatchesKoreanKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/kr/info">회사소개</a></body></html>`)
	}))
	defer srv.Close()

	f := scrape.NewPageFetcher()
	got, err := f.CollectContactLinks(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 2 || got[1] != srv.URL+"/kr/info" {
		t.Fatalf("expected korean company-info link harvested, got %v", got)
	}
}

func TestPageFetcher_FetchVisibleText_StripsMarkupAndCollapsesWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><style>body { color: red; }</style></head><body>
<script>var tracking = "do not include";</script>
<h1>Acme   Co</h1>
<p>
	Call us:
	+1-555-0100
</p>
<noscript>enable js</noscript>
</body></html>`)
	}))
	defer srv.Close()

	f := scrape.NewPageFetcher()
	got, err := f.FetchVisibleText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	want := "Acme Co Call us: +1-555-0100"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPageFetcher_FetchVisibleText_404IsPermanent(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := scrape.NewPageFetcher()
	if _, err := f.FetchVisibleText(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on 404")
	}
	if hits != 1 {
		t.Fatalf("expected no retries on 404, got %d requests", hits)
	}
}
