// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package job owns the lifecycle of generation jobs. One goroutine runs
// each job through its state machine; the store holds the only shared
// state, committed atomically on every transition so status reads always
// see a consistent snapshot.
package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/renderforge/internal/assets"
	"github.com/pdiddy/renderforge/internal/chain"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/planner"
	"github.com/pdiddy/renderforge/internal/render"
	"github.com/pdiddy/renderforge/internal/store"
	"github.com/pdiddy/renderforge/internal/validate"
	"github.com/pdiddy/renderforge/pkg/types"
)

// The stage interfaces let tests substitute deterministic fakes; the
// production implementations are the concrete stage types.
type plannerStage interface {
	Plan(ctx context.Context, req types.ContentRequest) (types.ContentPlan, []chain.Attempt, error)
	Enrich(ctx context.Context, req types.ContentRequest, plan *types.ContentPlan)
}

type assetStage interface {
	Enrich(ctx context.Context, req types.ContentRequest, plan types.ContentPlan) []types.SectionAssets
}

type renderStage interface {
	OutDirFor(jobID string) (string, error)
	Render(ctx context.Context, in render.Input) (types.Artifact, []chain.Attempt, error)
}

type qualityGate interface {
	Evaluate(cycle int, plan types.ContentPlan, artifact types.Artifact) (types.ValidationReport, error)
}

// Engine coordinates the generation stages and tracks running jobs.
type Engine struct {
	cfg      types.EngineConfig
	planner  plannerStage
	assets   assetStage
	renderer renderStage
	gate     qualityGate
	store    *store.Store
	log      *logger.Logger

	mu        sync.Mutex
	cancelled map[string]bool
	running   sync.WaitGroup
}

// NewEngine wires the stages from config. The secrets map comes from the
// .secrets/ directory loader; client may be nil for the default HTTP
// client.
func NewEngine(cfg types.EngineConfig, secretStore map[string]string, client *http.Client, st *store.Store, log *logger.Logger) (*Engine, error) {
	if client == nil {
		client = http.DefaultClient
	}
	plannerStage, err := planner.NewStage(cfg, secretStore, client, log)
	if err != nil {
		return nil, fmt.Errorf("building planner stage: %w", err)
	}
	orchestrator, err := assets.NewOrchestrator(cfg, client, log)
	if err != nil {
		return nil, fmt.Errorf("building asset orchestrator: %w", err)
	}
	generator, err := render.NewGenerator(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("building render generator: %w", err)
	}
	gate, err := validate.NewGate(cfg.Validation, log)
	if err != nil {
		return nil, fmt.Errorf("building quality gate: %w", err)
	}
	return &Engine{
		cfg:       cfg,
		planner:   plannerStage,
		assets:    orchestrator,
		renderer:  generator,
		gate:      gate,
		store:     st,
		log:       log,
		cancelled: make(map[string]bool),
	}, nil
}

// Submit validates the request, persists a queued job, and starts its
// runner goroutine. Returns the new job id.
func (e *Engine) Submit(ctx context.Context, req types.ContentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	job := &types.Job{
		ID:        uuid.NewString(),
		Request:   req,
		State:     types.StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("persisting job: %w", err)
	}

	e.running.Add(1)
	go e.run(job)
	return job.ID, nil
}

// Status returns a committed snapshot of the job. Never blocks on the job
// progressing.
func (e *Engine) Status(ctx context.Context, id string) (*types.Job, error) {
	return e.store.Get(ctx, id)
}

// List returns all known jobs, newest first.
func (e *Engine) List(ctx context.Context) ([]*types.Job, error) {
	return e.store.List(ctx)
}

// Cancel marks a job for cancellation. Advisory: in-flight provider calls
// drain to their own timeouts; the runner observes the flag at the next
// stage boundary.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("job %s already %s", id, job.State)
	}
	e.mu.Lock()
	e.cancelled[id] = true
	e.mu.Unlock()
	return nil
}

// Wait blocks until every running job has reached a terminal state. Used
// for graceful shutdown.
func (e *Engine) Wait() {
	e.running.Wait()
}

func (e *Engine) isCancelled(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[id]
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.cancelled, id)
	e.mu.Unlock()
}

// run drives one job through the state machine. The wall-clock deadline
// is measured from submission; it cancels outstanding provider calls for
// this job only.
func (e *Engine) run(job *types.Job) {
	defer e.running.Done()
	defer e.forget(job.ID)

	ctx, cancel := context.WithDeadline(context.Background(), job.CreatedAt.Add(e.cfg.JobTimeout))
	defer cancel()

	log := e.log.With("job", job.ID, "format", job.Request.OutputFormat)
	log.Info("job started", "title", job.Request.Title)

	// Planning: fatal if every planner provider is exhausted.
	if !e.transition(job, types.StatePlanning) {
		return
	}
	plan, attempts, err := e.planner.Plan(ctx, job.Request)
	if err != nil {
		log.Warn("planning failed", "attempts", len(attempts), "error", err)
		e.fail(job, e.reasonFor(ctx, job.ID, types.ReasonPlanningExhausted), err.Error())
		return
	}
	job.Plan = &plan
	log.Info("plan ready", "sections", len(plan.Sections))

	// Enriching: research key points and acquire assets, both best-effort.
	if !e.transition(job, types.StateEnriching) {
		return
	}
	e.planner.Enrich(ctx, job.Request, job.Plan)
	job.SectionAssets = e.assets.Enrich(ctx, job.Request, *job.Plan)

	outDir, err := e.renderer.OutDirFor(job.ID)
	if err != nil {
		e.fail(job, types.ReasonRenderingExhausted, err.Error())
		return
	}

	// Rendering and validating form the bounded retry loop. Each cycle
	// re-runs the engine chain from its first provider; assets are
	// reused, not re-acquired.
	maxCycles := e.cfg.Validation.RenderRetries + 1
	var best *types.Artifact
	bestScore := -1.0

	for cycle := 1; cycle <= maxCycles; cycle++ {
		if !e.transition(job, types.StateRendering) {
			return
		}
		in := render.Input{
			JobID:   job.ID,
			Cycle:   cycle,
			Request: job.Request,
			Plan:    *job.Plan,
			Assets:  job.SectionAssets,
			OutDir:  outDir,
		}
		artifact, renderAttempts, err := e.renderer.Render(ctx, in)
		job.RenderAttempts = append(job.RenderAttempts, recordAttempts(cycle, renderAttempts, err == nil, &artifact)...)
		if err != nil {
			log.Warn("rendering failed", "cycle", cycle, "error", err)
			e.fail(job, e.reasonFor(ctx, job.ID, types.ReasonRenderingExhausted), err.Error())
			return
		}

		if !e.transition(job, types.StateValidating) {
			return
		}
		report, err := e.gate.Evaluate(cycle, *job.Plan, artifact)
		if err != nil {
			// Unreadable artifact scores zero on every axis.
			log.Warn("validation could not read artifact", "cycle", cycle, "error", err)
			report = types.ValidationReport{Cycle: cycle, Violated: []string{"artifact_unreadable"}}
		}
		job.ValidationReports = append(job.ValidationReports, report)

		if report.Pass {
			job.FinalArtifact = &artifact
			e.transition(job, types.StateCompleted)
			log.Info("job completed", "cycles", cycle, "artifact", artifact.Path)
			return
		}
		if score := report.TotalScore(); score > bestScore {
			bestScore = score
			a := artifact
			best = &a
		}
		log.Info("validation failed", "cycle", cycle, "violated", report.Violated)
	}

	// Retry budget spent. Keep the best-scoring render for inspection.
	job.BestArtifact = best
	e.fail(job, types.ReasonValidationExhausted,
		fmt.Sprintf("validation failed after %d render cycles", maxCycles))
}

// transition commits a state change, first honoring cancellation and the
// job deadline at this stage boundary. Returns false when the job was
// moved to Failed instead.
func (e *Engine) transition(job *types.Job, state types.JobState) bool {
	if !state.Terminal() {
		if e.isCancelled(job.ID) {
			e.fail(job, types.ReasonCallerCancelled, "cancelled by caller")
			return false
		}
		if deadline := job.CreatedAt.Add(e.cfg.JobTimeout); time.Now().After(deadline) {
			e.fail(job, types.ReasonInternalTimeout,
				fmt.Sprintf("job exceeded %s wall-clock timeout", e.cfg.JobTimeout))
			return false
		}
	}
	job.State = state
	e.commit(job)
	return true
}

func (e *Engine) fail(job *types.Job, reason types.FailureReason, detail string) {
	job.State = types.StateFailed
	job.FailureReason = reason
	job.FailureDetail = detail
	e.commit(job)
	e.log.Warn("job failed", "job", job.ID, "reason", reason, "detail", detail)
}

// commit persists the job with a fresh context: the job's own context may
// already be past its deadline when a failure is recorded.
func (e *Engine) commit(job *types.Job) {
	job.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.Put(ctx, job); err != nil {
		e.log.Error("persisting job state", "job", job.ID, "state", job.State, "error", err)
	}
}

// reasonFor maps a stage failure to the user-visible reason, preferring
// cancellation and deadline over provider exhaustion when both apply.
func (e *Engine) reasonFor(ctx context.Context, id string, stageReason types.FailureReason) types.FailureReason {
	if e.isCancelled(id) {
		return types.ReasonCallerCancelled
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.ReasonInternalTimeout
	}
	return stageReason
}

// recordAttempts converts one render cycle's chain attempts into the
// job's append-only attempt log. The successful attempt, if any, carries
// the artifact descriptor.
func recordAttempts(cycle int, attempts []chain.Attempt, succeeded bool, artifact *types.Artifact) []types.RenderAttempt {
	records := make([]types.RenderAttempt, len(attempts))
	for i, a := range attempts {
		r := types.RenderAttempt{
			Cycle:     cycle,
			Engine:    a.Provider,
			Success:   a.Success,
			StartedAt: a.StartedAt,
			EndedAt:   a.EndedAt,
		}
		if a.Err != nil {
			r.Error = a.Err.Error()
			r.ErrorKind = string(a.Kind)
		}
		if a.Success && succeeded {
			art := *artifact
			r.Artifact = &art
		}
		records[i] = r
	}
	return records
}
