// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner produces the ordered section plan for a content request
// and optionally enriches sections with research-derived key points. The
// planning chain is fatal on exhaustion; research is best-effort.
package planner

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/renderforge/internal/chain"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/internal/secrets"
	"github.com/pdiddy/renderforge/pkg/types"
)

// PlanProvider is a planning capability provider.
type PlanProvider = provider.Provider[types.ContentRequest, types.ContentPlan]

// ResearchQuery asks a research provider for supporting facts on one section.
type ResearchQuery struct {
	Topic   string
	Section string
	Max     int
}

// ResearchProvider is a research capability provider returning key points.
type ResearchProvider = provider.Provider[ResearchQuery, []string]

// Stage runs the planning chain once per job and the research chain once
// per section.
type Stage struct {
	planChain     *chain.Chain[types.ContentRequest, types.ContentPlan]
	researchChain *chain.Chain[ResearchQuery, []string]
	maxKeyPoints  int
	log           *logger.Logger
}

// NewStage resolves the configured provider names into adapters and builds
// the planning and research chains. Unknown provider names are a
// configuration error, caught here rather than at call time.
func NewStage(cfg types.EngineConfig, secretStore map[string]string, client *http.Client, log *logger.Logger) (*Stage, error) {
	var planners []PlanProvider
	for _, name := range cfg.Planner.Chain.Providers {
		switch name {
		case "openai":
			llm := cfg.Planner.LLM
			llm.APIKey = secrets.Resolve(secretStore, "openai-api-key", llm.APIKey)
			planners = append(planners, NewOpenAIPlanner(llm, cfg.Planner.MaxSections))
		case "outline":
			planners = append(planners, &OutlinePlanner{MaxSections: cfg.Planner.MaxSections})
		default:
			return nil, fmt.Errorf("unknown planner provider %q", name)
		}
	}

	retries := cfg.Planner.Chain.SameProviderRetries
	if retries <= 0 {
		retries = 1
	}
	planChain, err := chain.New("planner", planners, cfg.Planner.Chain.ProviderTimeout,
		chain.WithSameProviderRetries(retries))
	if err != nil {
		return nil, err
	}

	s := &Stage{
		planChain:    planChain,
		maxKeyPoints: cfg.Research.MaxKeyPoints,
		log:          log,
	}

	if cfg.Research.Enabled {
		// Shallow copy so the research timeout does not leak into other
		// stages sharing the base client.
		hc := *client
		hc.Timeout = cfg.Research.Timeout

		var researchers []ResearchProvider
		for _, name := range cfg.Research.Chain.Providers {
			switch name {
			case "openalex":
				email := secrets.Resolve(secretStore, "openalex-email", cfg.Research.Email)
				researchers = append(researchers, &OpenAlexResearcher{
					Client:    &hc,
					Email:     email,
					UserAgent: cfg.Research.UserAgent,
				})
			default:
				return nil, fmt.Errorf("unknown research provider %q", name)
			}
		}
		s.researchChain, err = chain.New("research", researchers, cfg.Research.Chain.ProviderTimeout)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Plan runs the planning chain. On success the returned plan is immutable
// apart from key-point enrichment; on failure the partial plan is discarded
// and the chain error surfaces to the job.
func (s *Stage) Plan(ctx context.Context, req types.ContentRequest) (types.ContentPlan, []chain.Attempt, error) {
	plan, attempts, err := s.planChain.Run(ctx, req)
	if err != nil {
		return types.ContentPlan{}, attempts, err
	}
	if plan.IsEmpty() {
		return types.ContentPlan{}, attempts, fmt.Errorf("planner returned an empty plan")
	}
	return plan, attempts, nil
}

// Enrich adds research-derived key points to each section. Failures are
// logged and skipped: a section without research proceeds unchanged, the
// same way asset acquisition failures never fail a job.
func (s *Stage) Enrich(ctx context.Context, req types.ContentRequest, plan *types.ContentPlan) {
	if s.researchChain == nil {
		return
	}
	for i := range plan.Sections {
		if ctx.Err() != nil {
			return
		}
		q := ResearchQuery{
			Topic:   req.Title,
			Section: plan.Sections[i].Title,
			Max:     s.maxKeyPoints,
		}
		points, _, err := s.researchChain.Run(ctx, q)
		if err != nil {
			s.log.Warn("research enrichment failed",
				"section", plan.Sections[i].Title, "error", err)
			continue
		}
		plan.Sections[i].KeyPoints = append(plan.Sections[i].KeyPoints, points...)
	}
}
