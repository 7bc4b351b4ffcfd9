// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Section is one planned content unit: a slide in a deck or a subsection of
// a document. KeyPoints may grow during enrichment; the rest is fixed once
// planning succeeds.
type Section struct {
	Title       string   `json:"title" yaml:"title"`
	BodyOutline string   `json:"body_outline" yaml:"body_outline"`
	KeyPoints   []string `json:"key_points,omitempty" yaml:"key_points,omitempty"`
}

// ContentPlan is the ordered section list produced by the planning stage.
// A plan is immutable once planning succeeds; a failed planning attempt
// discards any partial plan.
type ContentPlan struct {
	Sections []Section `json:"sections" yaml:"sections"`
}

// IsEmpty reports whether the plan contains no sections.
func (p ContentPlan) IsEmpty() bool { return len(p.Sections) == 0 }

// SectionTitles returns the ordered list of section titles.
func (p ContentPlan) SectionTitles() []string {
	titles := make([]string, len(p.Sections))
	for i, s := range p.Sections {
		titles[i] = s.Title
	}
	return titles
}
