// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// HTMLEngine renders a standalone HTML page from the canonical markdown
// via goldmark. With Deck set it emits one <section class="slide"> per
// planned section instead of a single flowing document.
type HTMLEngine struct {
	Deck bool
}

// Name returns the engine identifier.
func (e *HTMLEngine) Name() string {
	if e.Deck {
		return "htmldeck"
	}
	return "htmldoc"
}

// Invoke converts the markdown emission and wraps it in a minimal page.
func (e *HTMLEngine) Invoke(_ context.Context, in Input) (types.Artifact, error) {
	if in.Plan.IsEmpty() {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindInvalidInput, "empty plan")
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body strings.Builder
	if e.Deck {
		// Title slide, then one slide per section.
		titleMD := "# " + in.Request.Title
		if in.Request.Brief != "" {
			titleMD += "\n\n" + in.Request.Brief
		}
		if err := e.writeSlide(md, &body, titleMD); err != nil {
			return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnknown, "converting title slide: %v", err)
		}
		for i, s := range in.Plan.Sections {
			var sa []types.SectionAssets
			if i < len(in.Assets) {
				sa = []types.SectionAssets{in.Assets[i]}
			}
			slideMD := BuildMarkdown(types.ContentRequest{Title: s.Title},
				types.ContentPlan{Sections: []types.Section{s}}, sa, false)
			// Drop the duplicated page heading; the section heading leads.
			slideMD = strings.TrimPrefix(slideMD, "# "+s.Title+"\n\n")
			if err := e.writeSlide(md, &body, slideMD); err != nil {
				return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnknown, "converting slide %d: %v", i, err)
			}
		}
	} else {
		content := BuildMarkdown(in.Request, in.Plan, in.Assets, false)
		var buf bytes.Buffer
		if err := md.Convert([]byte(content), &buf); err != nil {
			return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnknown, "converting markdown: %v", err)
		}
		body.Write(buf.Bytes())
	}

	page := renderPage(in.Request, body.String(), e.Deck)
	path := attemptPath(in, e.Name(), ".html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "writing %s: %v", path, err)
	}
	return artifactFor(path, in.Request.OutputFormat, e.Name(), "text/html")
}

func (e *HTMLEngine) writeSlide(md goldmark.Markdown, body *strings.Builder, slideMD string) error {
	var buf bytes.Buffer
	if err := md.Convert([]byte(slideMD), &buf); err != nil {
		return err
	}
	body.WriteString("<section class=\"slide\">\n")
	body.Write(buf.Bytes())
	body.WriteString("</section>\n")
	return nil
}

func renderPage(req types.ContentRequest, body string, deck bool) string {
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	class := "document"
	if deck {
		class = "deck"
	}
	if req.Style != "" {
		class += " style-" + sanitizeClass(req.Style)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang=%q>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
.deck section.slide { min-height: 90vh; border-bottom: 1px solid #ccc; padding: 2rem 0; }
img { max-width: 100%%; }
</style>
</head>
<body class=%q>
%s</body>
</html>
`, lang, html.EscapeString(req.Title), class, body)
}

func sanitizeClass(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteByte('-')
		}
	}
	return b.String()
}
