// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/renderforge/internal/httputil"
	"github.com/pdiddy/renderforge/internal/provider"
)

// openAlexWorksBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexWorksBase = "https://api.openalex.org/works"

// OpenAlexResearcher pulls supporting key points for a section from the
// OpenAlex works API: the top-ranked abstracts become candidate points.
type OpenAlexResearcher struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email     string
	UserAgent string
}

// Name returns the provider identifier.
func (r *OpenAlexResearcher) Name() string { return "openalex" }

// Invoke queries OpenAlex and distills abstracts into key points.
func (r *OpenAlexResearcher) Invoke(ctx context.Context, q ResearchQuery) ([]string, error) {
	search := strings.TrimSpace(q.Topic + " " + q.Section)
	if search == "" {
		return nil, provider.Errorf(r.Name(), provider.KindInvalidInput, "empty research query")
	}
	max := q.Max
	if max <= 0 {
		max = 3
	}

	params := url.Values{
		"search":   {search},
		"per_page": {fmt.Sprintf("%d", max)},
		"page":     {"1"},
	}
	if r.Email != "" {
		params.Set("mailto", r.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexWorksBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, provider.Errorf(r.Name(), provider.KindUnknown, "creating request: %v", err)
	}
	req.Header.Set("User-Agent", r.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, r.Client, req, 1)
	if err != nil {
		return nil, provider.Wrap(r.Name(), fmt.Errorf("OpenAlex request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.Errorf(r.Name(), provider.KindFromStatus(resp.StatusCode),
			"OpenAlex returned HTTP %d", resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, provider.Errorf(r.Name(), provider.KindUnknown, "parsing OpenAlex response: %v", err)
	}

	var points []string
	for _, work := range oar.Results {
		abstract := reconstructAbstract(work.AbstractInvertedIndex)
		point := firstSentence(abstract)
		if point == "" {
			continue
		}
		if work.Title != "" {
			point = point + " (" + work.Title + ")"
		}
		points = append(points, point)
		if len(points) >= max {
			break
		}
	}
	return points, nil
}

// firstSentence clamps an abstract to a key-point-sized statement.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.Index(text, ". "); idx > 0 {
		text = text[:idx+1]
	}
	const maxPoint = 200
	if len(text) > maxPoint {
		cut := strings.LastIndex(text[:maxPoint], " ")
		if cut <= 0 {
			cut = maxPoint
		}
		text = text[:cut] + "..."
	}
	return text
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures, reduced to the fields read here.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	Title                 string           `json:"title"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}
