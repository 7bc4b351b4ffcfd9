// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns a plan plus acquired assets into the final artifact.
// One fallback chain exists per output format; each engine attempt consumes
// the full section set and either produces an artifact file or a typed
// error. Render attempts are expensive, so an engine is never retried
// within the same render cycle; retries happen at the quality-gate level.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/renderforge/internal/chain"
	"github.com/pdiddy/renderforge/internal/container"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// Input is everything one render attempt consumes.
type Input struct {
	JobID   string
	Cycle   int
	Request types.ContentRequest
	Plan    types.ContentPlan
	Assets  []types.SectionAssets

	// OutDir is the artifact directory for this job.
	OutDir string
}

// Engine is a rendering capability provider.
type Engine = provider.Provider[Input, types.Artifact]

// Generator holds one chain per configured output format.
type Generator struct {
	chains map[types.OutputFormat]*chain.Chain[Input, types.Artifact]
	outDir string
}

// NewGenerator resolves the configured engine names for every format.
// Container detection for the PDF engine happens lazily at invoke time, so
// a host without docker can still serve non-PDF formats.
func NewGenerator(cfg types.EngineConfig, log *logger.Logger) (*Generator, error) {
	chains := make(map[types.OutputFormat]*chain.Chain[Input, types.Artifact])
	for format, names := range cfg.Render.Engines {
		var engines []Engine
		for _, name := range names {
			e, err := newEngine(name, cfg)
			if err != nil {
				return nil, fmt.Errorf("format %s: %w", format, err)
			}
			engines = append(engines, e)
		}
		c, err := chain.New("render/"+string(format), engines, cfg.Render.AttemptTimeout,
			chain.WithSameProviderRetries(0))
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", format, err)
		}
		chains[format] = c
		log.Debug("render chain configured", "format", format, "engines", names)
	}
	return &Generator{chains: chains, outDir: cfg.Render.OutputDir}, nil
}

func newEngine(name string, cfg types.EngineConfig) (Engine, error) {
	switch name {
	case "markdown":
		return &MarkdownEngine{}, nil
	case "plaintext":
		return &PlaintextEngine{}, nil
	case "htmldoc":
		return &HTMLEngine{}, nil
	case "htmldeck":
		return &HTMLEngine{Deck: true}, nil
	case "pandoc-container":
		return &PandocContainerEngine{Image: cfg.Render.PandocImage, Detect: container.DetectRuntime}, nil
	case "pandoc-exec":
		return &PandocExecEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown render engine %q", name)
	}
}

// OutDirFor returns the artifact directory for a job, creating it.
func (g *Generator) OutDirFor(jobID string) (string, error) {
	dir := filepath.Join(g.outDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory %s: %w", dir, err)
	}
	return dir, nil
}

// Render runs the format's engine chain with the full plan and assets.
// Returned attempts cover every engine tried this cycle.
func (g *Generator) Render(ctx context.Context, in Input) (types.Artifact, []chain.Attempt, error) {
	c, ok := g.chains[in.Request.OutputFormat]
	if !ok {
		return types.Artifact{}, nil, fmt.Errorf("no engines configured for format %s", in.Request.OutputFormat)
	}
	return c.Run(ctx, in)
}

// artifactFor stats a freshly written file and fills the descriptor.
func artifactFor(path string, format types.OutputFormat, engine, mime string) (types.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Artifact{}, fmt.Errorf("stat artifact %s: %w", path, err)
	}
	return types.Artifact{
		Path:     path,
		Format:   format,
		Engine:   engine,
		MIMEType: mime,
		Bytes:    info.Size(),
	}, nil
}

// attemptPath names an artifact file uniquely per cycle and engine so a
// retried cycle never overwrites an earlier attempt.
func attemptPath(in Input, engine, ext string) string {
	return filepath.Join(in.OutDir, fmt.Sprintf("cycle%d-%s%s", in.Cycle, engine, ext))
}
