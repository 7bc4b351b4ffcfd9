// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

func TestOpenverseImages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "tidal turbine" {
			t.Errorf("q = %q, want tidal turbine", got)
		}
		json.NewEncoder(w).Encode(openverseResponse{Results: []openverseResult{
			{Title: "Turbine", URL: "https://img.example/t.jpg", License: "cc0"},
		}})
	}))
	defer ts.Close()

	old := openverseSearchBase
	openverseSearchBase = ts.URL
	defer func() { openverseSearchBase = old }()

	p := &OpenverseImages{Client: ts.Client(), UserAgent: "test/0.1"}
	asset, err := p.Invoke(context.Background(), Query{Terms: "tidal turbine"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if asset.URI != "https://img.example/t.jpg" || asset.License != "cc0" {
		t.Errorf("asset = %+v", asset)
	}
	if asset.Status != types.AssetOK {
		t.Errorf("status = %v, want ok", asset.Status)
	}
}

func TestOpenverseRankedResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page_size"); got != "2" {
			t.Errorf("page_size = %q, want 2 for rank 1", got)
		}
		json.NewEncoder(w).Encode(openverseResponse{Results: []openverseResult{
			{Title: "First", URL: "https://img.example/1.jpg"},
			{Title: "Second", URL: "https://img.example/2.jpg"},
		}})
	}))
	defer ts.Close()

	old := openverseSearchBase
	openverseSearchBase = ts.URL
	defer func() { openverseSearchBase = old }()

	p := &OpenverseImages{Client: ts.Client(), UserAgent: "test/0.1"}
	asset, err := p.Invoke(context.Background(), Query{Terms: "tidal", Rank: 1})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if asset.URI != "https://img.example/2.jpg" {
		t.Errorf("URI = %q, want the rank-1 result", asset.URI)
	}

	// Ranks past the result set are a no-result error, not a panic.
	if _, err := p.Invoke(context.Background(), Query{Terms: "tidal", Rank: 5}); err == nil {
		t.Fatal("expected error for out-of-range rank")
	}
}

func TestOpenverseNoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(openverseResponse{})
	}))
	defer ts.Close()

	old := openverseSearchBase
	openverseSearchBase = ts.URL
	defer func() { openverseSearchBase = old }()

	p := &OpenverseImages{Client: ts.Client(), UserAgent: "test/0.1"}
	_, err := p.Invoke(context.Background(), Query{Terms: "xyzzy"})
	if err == nil {
		t.Fatal("expected error for empty result set")
	}
	if provider.KindOf(err) == provider.KindInvalidInput {
		t.Error("no-results must not classify as invalid input; the next provider should be tried")
	}
}

func TestWikimediaImages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("gsrnamespace"); got != "6" {
			t.Errorf("gsrnamespace = %q, want 6 (File)", got)
		}
		w.Write([]byte(`{"query":{"pages":{
			"42":{"title":"File:B.jpg","index":2,"imageinfo":[{"url":"https://commons.example/b.jpg"}]},
			"7":{"title":"File:A.jpg","index":1,"imageinfo":[{"url":"https://commons.example/a.jpg"}]}
		}}}`))
	}))
	defer ts.Close()

	old := wikimediaAPIBase
	wikimediaAPIBase = ts.URL
	defer func() { wikimediaAPIBase = old }()

	p := &WikimediaImages{Client: ts.Client(), UserAgent: "test/0.1"}
	asset, err := p.Invoke(context.Background(), Query{Terms: "tidal"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	// Top-ranked page by search index, not map order.
	if asset.URI != "https://commons.example/a.jpg" {
		t.Errorf("URI = %q, want the index-1 page", asset.URI)
	}
}

func TestWikimediaRateLimitClassified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	old := wikimediaAPIBase
	wikimediaAPIBase = ts.URL
	defer func() { wikimediaAPIBase = old }()

	p := &WikimediaImages{Client: ts.Client(), UserAgent: "test/0.1"}
	_, err := p.Invoke(context.Background(), Query{Terms: "x"})
	if provider.KindOf(err) != provider.KindRateLimited {
		t.Errorf("kind = %v, want rate_limited", provider.KindOf(err))
	}
}

func TestIconifyIcons(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "energy" {
			t.Errorf("query = %q, want energy (leading keyword, lowercased)", got)
		}
		json.NewEncoder(w).Encode(iconifyResponse{Icons: []string{"mdi:lightning-bolt"}})
	}))
	defer ts.Close()

	oldSearch, oldSVG := iconifySearchBase, iconifySVGBase
	iconifySearchBase = ts.URL
	iconifySVGBase = "https://svg.example"
	defer func() { iconifySearchBase, iconifySVGBase = oldSearch, oldSVG }()

	p := &IconifyIcons{Client: ts.Client(), UserAgent: "test/0.1"}
	asset, err := p.Invoke(context.Background(), Query{Terms: "Energy storage basics"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if asset.URI != "https://svg.example/mdi/lightning-bolt.svg" {
		t.Errorf("URI = %q", asset.URI)
	}
	if asset.Kind != types.AssetIcon {
		t.Errorf("kind = %v, want icon", asset.Kind)
	}
}

func TestIconifyEmptyQueryInvalidInput(t *testing.T) {
	p := &IconifyIcons{Client: http.DefaultClient}
	_, err := p.Invoke(context.Background(), Query{})
	if provider.KindOf(err) != provider.KindInvalidInput {
		t.Errorf("kind = %v, want invalid_input", provider.KindOf(err))
	}
	if !strings.Contains(err.Error(), "empty icon query") {
		t.Errorf("err = %v", err)
	}
}
