// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assets acquires visual assets for planned sections. Image and
// icon chains run concurrently per section, fanned out across sections up
// to a configured bound. Acquisition is best-effort enrichment: chain
// failures are recorded, never propagated, and a section with zero assets
// is valid.
package assets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/renderforge/internal/chain"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// Query is the input to one image or icon provider call.
type Query struct {
	// Terms is the search text, derived from the section title and the
	// request topic.
	Terms string

	// Style carries the request's style tag for providers that can use it.
	Style string

	// Rank is the zero-based result rank wanted. Sections collecting more
	// than one asset per kind re-query with increasing ranks.
	Rank int
}

// Provider is an asset capability provider returning one acquired asset.
type Provider = provider.Provider[Query, types.Asset]

// Orchestrator fans asset acquisition out across the sections of a plan.
type Orchestrator struct {
	imageChain    *chain.Chain[Query, types.Asset]
	iconChain     *chain.Chain[Query, types.Asset]
	maxConcurrent int
	maxPerKind    int
	log           *logger.Logger
}

// NewOrchestrator resolves configured provider names and builds the image
// and icon chains.
func NewOrchestrator(cfg types.EngineConfig, client *http.Client, log *logger.Logger) (*Orchestrator, error) {
	// Shallow copy so the asset timeout does not leak into other stages
	// sharing the base client.
	hc := *client
	hc.Timeout = cfg.Assets.Timeout

	imageChain, err := buildChain("image", cfg.Assets.ImageChain, cfg.Assets, &hc)
	if err != nil {
		return nil, err
	}
	iconChain, err := buildChain("icon", cfg.Assets.IconChain, cfg.Assets, &hc)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		imageChain:    imageChain,
		iconChain:     iconChain,
		maxConcurrent: cfg.Assets.MaxConcurrentSections,
		maxPerKind:    cfg.Assets.MaxAssetsPerSection,
		log:           log,
	}, nil
}

func buildChain(capability string, cc types.ChainConfig, cfg types.AssetsConfig, client *http.Client) (*chain.Chain[Query, types.Asset], error) {
	var providers []Provider
	for _, name := range cc.Providers {
		switch name {
		case "openverse":
			providers = append(providers, &OpenverseImages{Client: client, UserAgent: cfg.UserAgent})
		case "wikimedia":
			providers = append(providers, &WikimediaImages{Client: client, UserAgent: cfg.UserAgent})
		case "iconify":
			providers = append(providers, &IconifyIcons{Client: client, UserAgent: cfg.UserAgent})
		default:
			return nil, fmt.Errorf("unknown %s provider %q", capability, name)
		}
	}
	return chain.New(capability, providers, cc.ProviderTimeout)
}

// Enrich acquires assets for every section of the plan. It returns one
// SectionAssets per section, indexed like the plan. The call is a join, not
// a race: it returns only after every launched attempt has settled. At most
// maxConcurrent sections have outstanding calls at any instant; later
// sections queue until a slot frees.
func (o *Orchestrator) Enrich(ctx context.Context, req types.ContentRequest, plan types.ContentPlan) []types.SectionAssets {
	out := make([]types.SectionAssets, len(plan.Sections))
	for i := range out {
		out[i].SectionIndex = i
	}
	if !req.IncludeImages && !req.IncludeIcons {
		return out
	}

	sem := semaphore.NewWeighted(int64(o.maxConcurrent))
	var wg sync.WaitGroup

	for i := range plan.Sections {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Job cancelled while queueing; remaining sections keep
			// their empty (valid) asset lists.
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			o.enrichSection(ctx, req, plan.Sections[idx], &out[idx])
		}(i)
	}

	wg.Wait()
	return out
}

// enrichSection runs the image and icon chains concurrently for one section
// and appends every settled result, successful or failed, to the section's
// asset list. Each kind collects up to maxPerKind successful assets; the
// first failure ends collection for that kind with one recorded failure.
func (o *Orchestrator) enrichSection(ctx context.Context, req types.ContentRequest, section types.Section, sa *types.SectionAssets) {
	q := Query{
		Terms: strings.TrimSpace(section.Title + " " + req.Title),
		Style: req.Style,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(kind types.AssetKind, c *chain.Chain[Query, types.Asset]) {
		defer wg.Done()
		seen := make(map[string]bool, o.maxPerKind)
		for n := 0; n < o.maxPerKind; n++ {
			rq := q
			rq.Rank = n
			asset, attempts, err := c.Run(ctx, rq)
			if err != nil {
				// A failure after at least one success just ends
				// collection; the section already has its asset.
				if n > 0 {
					return
				}
				o.log.Warn("asset acquisition failed",
					"kind", kind, "section", section.Title, "error", err)
				asset = failedAsset(kind, attempts, err)
			}
			if err == nil {
				if seen[asset.URI] {
					return
				}
				seen[asset.URI] = true
			}
			asset.Kind = kind
			mu.Lock()
			sa.Assets = append(sa.Assets, asset)
			mu.Unlock()
			if err != nil {
				return
			}
		}
	}

	if req.IncludeImages {
		wg.Add(1)
		go run(types.AssetImage, o.imageChain)
	}
	if req.IncludeIcons {
		wg.Add(1)
		go run(types.AssetIcon, o.iconChain)
	}
	wg.Wait()
}

// failedAsset downgrades a chain failure to a recorded asset. The provider
// field lists every provider tried so the failure is diagnosable from job
// status alone.
func failedAsset(kind types.AssetKind, attempts []chain.Attempt, err error) types.Asset {
	names := make([]string, len(attempts))
	for i, a := range attempts {
		names[i] = a.Provider
	}
	return types.Asset{
		Kind:     kind,
		Provider: strings.Join(names, ","),
		Status:   types.AssetFailed,
		Error:    err.Error(),
	}
}
