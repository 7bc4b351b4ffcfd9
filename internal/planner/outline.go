// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"strings"

	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// OutlinePlanner derives a plan directly from the request's notes without
// any external call. It is the terminal fallback of the planning chain:
// always available, deterministic for the same request.
type OutlinePlanner struct {
	// MaxSections caps the plan length including the overview and
	// summary sections.
	MaxSections int
}

// Name returns the provider identifier.
func (p *OutlinePlanner) Name() string { return "outline" }

// Invoke builds one section per note, bracketed by an overview section from
// the brief and a closing summary. A request with neither brief nor notes
// cannot be planned by any provider and is classified InvalidInput.
func (p *OutlinePlanner) Invoke(_ context.Context, req types.ContentRequest) (types.ContentPlan, error) {
	if strings.TrimSpace(req.Brief) == "" && len(req.Notes) == 0 {
		return types.ContentPlan{}, provider.Errorf(p.Name(), provider.KindInvalidInput,
			"request has neither brief nor notes to outline")
	}

	var sections []types.Section
	if strings.TrimSpace(req.Brief) != "" {
		sections = append(sections, types.Section{
			Title:       "Overview",
			BodyOutline: strings.TrimSpace(req.Brief),
		})
	}

	for _, note := range req.Notes {
		note = strings.TrimSpace(note)
		if note == "" {
			continue
		}
		sections = append(sections, types.Section{
			Title:       noteTitle(note),
			BodyOutline: note,
			KeyPoints:   noteKeyPoints(note),
		})
	}

	sections = append(sections, types.Section{
		Title:       "Summary",
		BodyOutline: "Recap of " + req.Title + " covering the main points above.",
	})

	max := p.MaxSections
	if max > 0 && len(sections) > max {
		// Keep the summary as the final section when trimming.
		trimmed := append([]types.Section{}, sections[:max-1]...)
		sections = append(trimmed, sections[len(sections)-1])
	}

	return types.ContentPlan{Sections: sections}, nil
}

// noteTitle takes the first sentence or clause of a note, clamped to a
// heading-sized length.
func noteTitle(note string) string {
	title := note
	for _, sep := range []string{". ", ": ", "; ", " - "} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
		}
	}
	title = strings.TrimRight(title, ".:;")
	const maxTitle = 72
	if len(title) > maxTitle {
		cut := strings.LastIndex(title[:maxTitle], " ")
		if cut <= 0 {
			cut = maxTitle
		}
		title = title[:cut]
	}
	return strings.TrimSpace(title)
}

// noteKeyPoints splits a note into sentence-level points beyond the first.
func noteKeyPoints(note string) []string {
	parts := strings.Split(note, ". ")
	if len(parts) < 2 {
		return nil
	}
	var points []string
	for _, p := range parts[1:] {
		p = strings.TrimSpace(strings.TrimSuffix(p, "."))
		if p != "" {
			points = append(points, p)
		}
	}
	return points
}
