// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

const plannerSystemPrompt = `You are a content planner. Given a title, brief,
and notes, produce an ordered section plan as JSON with this exact shape:
{"sections":[{"title":"...","body_outline":"...","key_points":["..."]}]}
Return only the JSON object, no prose and no code fences. Every section
needs a distinct title and a one-paragraph body outline.`

// OpenAIPlanner plans via chat completions through the official openai-go
// SDK. Any OpenAI-compatible gateway works by setting BaseURL.
type OpenAIPlanner struct {
	model       string
	maxSections int
	opts        []option.RequestOption
	configured  bool
}

// NewOpenAIPlanner builds the planner from LLM settings. A missing API key
// or model is reported as Unavailable at invoke time so the chain falls
// through to the next planner instead of failing construction.
func NewOpenAIPlanner(cfg types.LLMConfig, maxSections int) *OpenAIPlanner {
	p := &OpenAIPlanner{model: cfg.Model, maxSections: maxSections}
	if cfg.APIKey == "" || cfg.Model == "" {
		return p
	}
	p.opts = []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		p.opts = append(p.opts, option.WithBaseURL(cfg.BaseURL))
	}
	p.configured = true
	return p
}

// Name returns the provider identifier.
func (p *OpenAIPlanner) Name() string { return "openai" }

// Invoke requests a plan and parses the JSON response.
func (p *OpenAIPlanner) Invoke(ctx context.Context, req types.ContentRequest) (types.ContentPlan, error) {
	if !p.configured {
		return types.ContentPlan{}, provider.Errorf(p.Name(), provider.KindUnavailable,
			"openai planner not configured: api key and model required")
	}

	client := openai.NewClient(p.opts...)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(plannerSystemPrompt),
			openai.UserMessage(buildPlannerPrompt(req, p.maxSections)),
		},
	})
	if err != nil {
		return types.ContentPlan{}, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return types.ContentPlan{}, provider.Errorf(p.Name(), provider.KindUnknown, "empty choices in response")
	}

	plan, err := parsePlanJSON(resp.Choices[0].Message.Content, p.maxSections)
	if err != nil {
		return types.ContentPlan{}, provider.Errorf(p.Name(), provider.KindUnknown, "parsing plan: %v", err)
	}
	return plan, nil
}

func (p *OpenAIPlanner) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &provider.Error{
			Provider: p.Name(),
			Kind:     provider.KindFromStatus(apiErr.StatusCode),
			Err:      err,
		}
	}
	return provider.Wrap(p.Name(), err)
}

func buildPlannerPrompt(req types.ContentRequest, maxSections int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	if req.Brief != "" {
		fmt.Fprintf(&b, "Brief: %s\n", req.Brief)
	}
	if req.Style != "" {
		fmt.Fprintf(&b, "Style: %s\n", req.Style)
	}
	if req.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", req.Language)
	}
	fmt.Fprintf(&b, "Target format: %s\n", req.OutputFormat)
	fmt.Fprintf(&b, "At most %d sections.\n", maxSections)
	if len(req.Notes) > 0 {
		b.WriteString("Notes:\n")
		for _, n := range req.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}

// parsePlanJSON decodes the model output, tolerating code fences the model
// was told not to emit but sometimes emits anyway.
func parsePlanJSON(raw string, maxSections int) (types.ContentPlan, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var plan types.ContentPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return types.ContentPlan{}, fmt.Errorf("decoding JSON: %w", err)
	}
	if len(plan.Sections) == 0 {
		return types.ContentPlan{}, fmt.Errorf("no sections in response")
	}
	if maxSections > 0 && len(plan.Sections) > maxSections {
		plan.Sections = plan.Sections[:maxSections]
	}
	for i, s := range plan.Sections {
		if strings.TrimSpace(s.Title) == "" {
			return types.ContentPlan{}, fmt.Errorf("section %d has an empty title", i)
		}
	}
	return plan, nil
}
