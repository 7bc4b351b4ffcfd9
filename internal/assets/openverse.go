// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/renderforge/internal/httputil"
	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// openverseSearchBase is the Openverse image search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openverseSearchBase = "https://api.openverse.org/v1/images/"

// OpenverseImages searches the Openverse catalog of openly licensed images.
type OpenverseImages struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the provider identifier.
func (p *OpenverseImages) Name() string { return "openverse" }

// Invoke returns the image at the query's rank, best-ranked first.
func (p *OpenverseImages) Invoke(ctx context.Context, q Query) (types.Asset, error) {
	if q.Terms == "" {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindInvalidInput, "empty image query")
	}

	params := url.Values{
		"q":         {q.Terms},
		"page_size": {strconv.Itoa(q.Rank + 1)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openverseSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "creating request: %v", err)
	}
	req.Header.Set("User-Agent", p.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 1)
	if err != nil {
		return types.Asset{}, provider.Wrap(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindFromStatus(resp.StatusCode),
			"Openverse returned HTTP %d", resp.StatusCode)
	}

	var body openverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "parsing response: %v", err)
	}
	if len(body.Results) <= q.Rank {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "no image at rank %d for %q", q.Rank, q.Terms)
	}

	r := body.Results[q.Rank]
	return types.Asset{
		Kind:     types.AssetImage,
		Provider: p.Name(),
		URI:      r.URL,
		Title:    r.Title,
		License:  r.License,
		Status:   types.AssetOK,
	}, nil
}

type openverseResponse struct {
	Results []openverseResult `json:"results"`
}

type openverseResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	License string `json:"license"`
}
