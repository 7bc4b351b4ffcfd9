// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// BuildMarkdown emits the canonical markdown for a plan. Every engine
// derives its output from this emission so section titles, ordering, and
// asset references agree across formats. When deck is true, sections are
// separated by slide breaks the way marp-style decks expect.
func BuildMarkdown(req types.ContentRequest, plan types.ContentPlan, assets []types.SectionAssets, deck bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", req.Title)
	if req.Brief != "" && !deck {
		fmt.Fprintf(&b, "%s\n\n", req.Brief)
	}

	for i, s := range plan.Sections {
		if deck {
			b.WriteString("---\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n", s.Title)
		if s.BodyOutline != "" {
			fmt.Fprintf(&b, "%s\n\n", s.BodyOutline)
		}
		for _, kp := range s.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", kp)
		}
		if len(s.KeyPoints) > 0 {
			b.WriteString("\n")
		}
		if i < len(assets) {
			for _, a := range assets[i].Images() {
				fmt.Fprintf(&b, "![%s](%s)\n\n", imageAlt(a), a.URI)
			}
			for _, a := range assets[i].Icons() {
				fmt.Fprintf(&b, "![icon: %s](%s)\n\n", a.Title, a.URI)
			}
		}
	}

	return b.String()
}

func imageAlt(a types.Asset) string {
	if a.Title != "" {
		return a.Title
	}
	return "illustration"
}

// MarkdownEngine writes the canonical markdown emission as the artifact
// itself. Serves document and webpage output directly and produces
// marp-style slide markdown for decks.
type MarkdownEngine struct{}

// Name returns the engine identifier.
func (e *MarkdownEngine) Name() string { return "markdown" }

// Invoke writes the markdown artifact.
func (e *MarkdownEngine) Invoke(_ context.Context, in Input) (types.Artifact, error) {
	if in.Plan.IsEmpty() {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindInvalidInput, "empty plan")
	}
	deck := in.Request.OutputFormat == types.FormatSlideDeck
	content := BuildMarkdown(in.Request, in.Plan, in.Assets, deck)

	path := attemptPath(in, e.Name(), ".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "writing %s: %v", path, err)
	}
	return artifactFor(path, in.Request.OutputFormat, e.Name(), "text/markdown")
}

// PlaintextEngine is the last-resort document engine: headings and bullets
// with no markup at all.
type PlaintextEngine struct{}

// Name returns the engine identifier.
func (e *PlaintextEngine) Name() string { return "plaintext" }

// Invoke writes the plain-text artifact.
func (e *PlaintextEngine) Invoke(_ context.Context, in Input) (types.Artifact, error) {
	if in.Plan.IsEmpty() {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindInvalidInput, "empty plan")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", in.Request.Title, strings.Repeat("=", len(in.Request.Title)))
	if in.Request.Brief != "" {
		fmt.Fprintf(&b, "%s\n\n", in.Request.Brief)
	}
	for _, s := range in.Plan.Sections {
		fmt.Fprintf(&b, "%s\n%s\n\n", s.Title, strings.Repeat("-", len(s.Title)))
		if s.BodyOutline != "" {
			fmt.Fprintf(&b, "%s\n\n", s.BodyOutline)
		}
		for _, kp := range s.KeyPoints {
			fmt.Fprintf(&b, "  * %s\n", kp)
		}
		if len(s.KeyPoints) > 0 {
			b.WriteString("\n")
		}
	}

	path := attemptPath(in, e.Name(), ".txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "writing %s: %v", path, err)
	}
	return artifactFor(path, in.Request.OutputFormat, e.Name(), "text/plain")
}
