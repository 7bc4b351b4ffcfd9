// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate scores rendered artifacts against the plan they were
// rendered from. The gate never calls external services; it inspects the
// artifact text and reports per-axis scores so the job can decide whether
// to re-render.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/pkg/types"
)

// Quality axes the gate knows how to score.
const (
	AxisSectionCoverage = "section_coverage"
	AxisSectionOrder    = "section_order"
	AxisContentLength   = "content_length"
)

// Gate scores artifacts. Stateless and safe for concurrent use.
type Gate struct {
	thresholds      map[string]float64
	minSectionChars int
	log             *logger.Logger
}

// NewGate builds a gate from validation config. Unknown axis names in the
// thresholds map are rejected so a typo fails at startup, not silently.
func NewGate(cfg types.ValidationConfig, log *logger.Logger) (*Gate, error) {
	for axis := range cfg.Thresholds {
		switch axis {
		case AxisSectionCoverage, AxisSectionOrder, AxisContentLength:
		default:
			return nil, fmt.Errorf("unknown validation axis %q", axis)
		}
	}
	return &Gate{
		thresholds:      cfg.Thresholds,
		minSectionChars: cfg.MinSectionChars,
		log:             log,
	}, nil
}

// Evaluate scores one rendered artifact against its plan. The returned
// report carries every configured axis; the error is reserved for the
// artifact text being unreadable.
func (g *Gate) Evaluate(cycle int, plan types.ContentPlan, artifact types.Artifact) (types.ValidationReport, error) {
	text, err := artifactText(artifact)
	if err != nil {
		return types.ValidationReport{}, err
	}
	lower := strings.ToLower(text)

	positions := titlePositions(lower, plan.SectionTitles())

	report := types.ValidationReport{Cycle: cycle, Pass: true}
	for _, axis := range sortedAxes(g.thresholds) {
		var score float64
		switch axis {
		case AxisSectionCoverage:
			score = coverageScore(positions)
		case AxisSectionOrder:
			score = orderScore(positions)
		case AxisContentLength:
			score = lengthScore(lower, positions, g.minSectionChars)
		}
		threshold := g.thresholds[axis]
		met := score >= threshold
		report.Axes = append(report.Axes, types.AxisScore{
			Axis:      axis,
			Score:     score,
			Threshold: threshold,
			Met:       met,
		})
		if !met {
			report.Pass = false
			report.Violated = append(report.Violated, axis)
		}
	}

	g.log.Debug("validated artifact",
		"cycle", cycle, "engine", artifact.Engine, "pass", report.Pass, "violated", report.Violated)
	return report, nil
}

// artifactText returns the scoreable text of an artifact. Binary formats
// are scored through the markdown source written beside them at render
// time.
func artifactText(a types.Artifact) (string, error) {
	path := a.Path
	if a.MIMEType == "application/pdf" {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading artifact text %s: %w", path, err)
	}
	return string(data), nil
}

// titlePositions locates each section title in the artifact text, in plan
// order. A missing title is recorded as -1.
func titlePositions(lower string, titles []string) []int {
	positions := make([]int, len(titles))
	for i, title := range titles {
		positions[i] = strings.Index(lower, strings.ToLower(title))
	}
	return positions
}

func coverageScore(positions []int) float64 {
	if len(positions) == 0 {
		return 0
	}
	found := 0
	for _, p := range positions {
		if p >= 0 {
			found++
		}
	}
	return float64(found) / float64(len(positions))
}

// orderScore checks that the sections which did appear occur in plan
// order. Fewer than two found sections is trivially ordered; missing
// sections are the coverage axis's problem.
func orderScore(positions []int) float64 {
	var found []int
	for _, p := range positions {
		if p >= 0 {
			found = append(found, p)
		}
	}
	if len(found) < 2 {
		return 1
	}
	ordered := 0
	for i := 1; i < len(found); i++ {
		if found[i] > found[i-1] {
			ordered++
		}
	}
	return float64(ordered) / float64(len(found)-1)
}

// lengthScore is the fraction of sections whose span, from its title to
// the next found title (or end of text), carries at least min characters.
// Missing sections count as too short.
func lengthScore(lower string, positions []int, min int) float64 {
	if len(positions) == 0 {
		return 0
	}
	long := 0
	for i, p := range positions {
		if p < 0 {
			continue
		}
		end := len(lower)
		for j := i + 1; j < len(positions); j++ {
			if positions[j] > p {
				end = positions[j]
				break
			}
		}
		if end-p >= min {
			long++
		}
	}
	return float64(long) / float64(len(positions))
}

func sortedAxes(thresholds map[string]float64) []string {
	axes := make([]string, 0, len(thresholds))
	for axis := range thresholds {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	return axes
}
