// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/pdiddy/renderforge/internal/httputil"
	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// wikimediaAPIBase is the Wikimedia Commons action API endpoint. Declared
// as a var so tests can substitute an httptest server.
var wikimediaAPIBase = "https://commons.wikimedia.org/w/api.php"

// WikimediaImages searches Wikimedia Commons for a section illustration.
type WikimediaImages struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the provider identifier.
func (p *WikimediaImages) Name() string { return "wikimedia" }

// Invoke searches the File namespace and returns the hit at the query's
// rank, top hit first.
func (p *WikimediaImages) Invoke(ctx context.Context, q Query) (types.Asset, error) {
	if q.Terms == "" {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindInvalidInput, "empty image query")
	}

	params := url.Values{
		"action":       {"query"},
		"format":       {"json"},
		"generator":    {"search"},
		"gsrsearch":    {q.Terms},
		"gsrnamespace": {"6"},
		"gsrlimit":     {strconv.Itoa(q.Rank + 1)},
		"prop":         {"imageinfo"},
		"iiprop":       {"url"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikimediaAPIBase+"?"+params.Encode(), nil)
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
			"Commons returned HTTP %d", resp.StatusCode)
	}

	var body wikimediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "parsing response: %v", err)
	}

	// Pages arrive keyed by page id; order by search rank index.
	pages := make([]wikimediaPage, 0, len(body.Query.Pages))
	for _, page := range body.Query.Pages {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	usable := pages[:0]
	for _, page := range pages {
		if len(page.ImageInfo) == 0 || page.ImageInfo[0].URL == "" {
			continue
		}
		usable = append(usable, page)
	}
	if len(usable) <= q.Rank {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "no image at rank %d for %q", q.Rank, q.Terms)
	}
	page := usable[q.Rank]
	return types.Asset{
		Kind:     types.AssetImage,
		Provider: p.Name(),
		URI:      page.ImageInfo[0].URL,
		Title:    page.Title,
		License:  "wikimedia-commons",
		Status:   types.AssetOK,
	}, nil
}

type wikimediaResponse struct {
	Query struct {
		Pages map[string]wikimediaPage `json:"pages"`
	} `json:"query"`
}

type wikimediaPage struct {
	Title     string `json:"title"`
	Index     int    `json:"index"`
	ImageInfo []struct {
		URL string `json:"url"`
	} `json:"imageinfo"`
}
