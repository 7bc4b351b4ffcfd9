// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/renderforge/internal/httputil"
	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// iconifySearchBase is the Iconify search endpoint. Declared as a var so
// tests can substitute an httptest server.
var iconifySearchBase = "https://api.iconify.design/search"

// iconifySVGBase serves individual icons as SVG by prefix and name.
var iconifySVGBase = "https://api.iconify.design"

// IconifyIcons searches the Iconify icon sets.
type IconifyIcons struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the provider identifier.
func (p *IconifyIcons) Name() string { return "iconify" }

// Invoke returns the matching icon at the query's rank as an SVG URI.
func (p *IconifyIcons) Invoke(ctx context.Context, q Query) (types.Asset, error) {
	if q.Terms == "" {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindInvalidInput, "empty icon query")
	}

	// Icon search works best on the leading keyword, not a whole title.
	term := q.Terms
	if idx := strings.IndexByte(term, ' '); idx > 0 {
		term = term[:idx]
	}

	params := url.Values{
		"query": {strings.ToLower(term)},
		"limit": {strconv.Itoa(q.Rank + 1)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconifySearchBase+"?"+params.Encode(), nil)
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
			"Iconify returned HTTP %d", resp.StatusCode)
	}

	var body iconifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "parsing response: %v", err)
	}
	if len(body.Icons) <= q.Rank {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "no icon at rank %d for %q", q.Rank, term)
	}

	// Icons are "prefix:name"; the SVG lives at /prefix/name.svg.
	icon := body.Icons[q.Rank]
	prefix, name, found := strings.Cut(icon, ":")
	if !found {
		return types.Asset{}, provider.Errorf(p.Name(), provider.KindUnknown, "malformed icon id %q", icon)
	}

	return types.Asset{
		Kind:     types.AssetIcon,
		Provider: p.Name(),
		URI:      iconifySVGBase + "/" + prefix + "/" + name + ".svg",
		Title:    icon,
		Status:   types.AssetOK,
	}, nil
}

type iconifyResponse struct {
	Icons []string `json:"icons"`
}
