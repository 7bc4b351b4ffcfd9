// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/renderforge/internal/chain"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/render"
	"github.com/pdiddy/renderforge/internal/store"
	"github.com/pdiddy/renderforge/pkg/types"
)

// --- stage fakes ---

type fakePlanner struct {
	plan  types.ContentPlan
	err   error
	delay time.Duration
}

func (f *fakePlanner) Plan(ctx context.Context, _ types.ContentRequest) (types.ContentPlan, []chain.Attempt, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	if f.err != nil {
		return types.ContentPlan{}, []chain.Attempt{{Provider: "openai"}, {Provider: "outline"}}, f.err
	}
	return f.plan, []chain.Attempt{{Provider: "outline", Success: true}}, nil
}

func (f *fakePlanner) Enrich(context.Context, types.ContentRequest, *types.ContentPlan) {}

type fakeAssets struct {
	result []types.SectionAssets
}

func (f *fakeAssets) Enrich(context.Context, types.ContentRequest, types.ContentPlan) []types.SectionAssets {
	return f.result
}

// fakeRenderer succeeds or fails per cycle and can block until released
// to make stage boundaries observable.
type fakeRenderer struct {
	dir     string
	err     error
	cycles  atomic.Int32
	block   chan struct{}
	started chan struct{}
}

func (f *fakeRenderer) OutDirFor(string) (string, error) { return f.dir, nil }

func (f *fakeRenderer) Render(ctx context.Context, in render.Input) (types.Artifact, []chain.Attempt, error) {
	f.cycles.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		attempts := []chain.Attempt{
			{Provider: "htmldoc", Kind: "unavailable", Err: errors.New("down")},
			{Provider: "markdown", Kind: "unavailable", Err: errors.New("down")},
		}
		return types.Artifact{}, attempts, f.err
	}
	art := types.Artifact{
		Path:     f.dir + "/out.md",
		Format:   in.Request.OutputFormat,
		Engine:   "markdown",
		MIMEType: "text/markdown",
		Bytes:    42,
	}
	return art, []chain.Attempt{{Provider: "markdown", Success: true}}, nil
}

// fakeGate passes from passCycle on; earlier cycles fail with rising
// scores so best-artifact selection is observable.
type fakeGate struct {
	passCycle int
}

func (f *fakeGate) Evaluate(cycle int, _ types.ContentPlan, _ types.Artifact) (types.ValidationReport, error) {
	if f.passCycle > 0 && cycle >= f.passCycle {
		return types.ValidationReport{Cycle: cycle, Pass: true,
			Axes: []types.AxisScore{{Axis: "section_coverage", Score: 1, Threshold: 1, Met: true}}}, nil
	}
	return types.ValidationReport{Cycle: cycle, Pass: false, Violated: []string{"section_coverage"},
		Axes: []types.AxisScore{{Axis: "section_coverage", Score: float64(cycle) / 10, Threshold: 1}}}, nil
}

// --- helpers ---

func testRequest() types.ContentRequest {
	return types.ContentRequest{Title: "Wind Farms", Brief: "offshore wind", OutputFormat: types.FormatDocument}
}

func testPlan() types.ContentPlan {
	return types.ContentPlan{Sections: []types.Section{{Title: "Overview"}, {Title: "Costs"}}}
}

func testEngine(t *testing.T, cfg types.EngineConfig, p plannerStage, a assetStage, r renderStage, g qualityGate) *Engine {
	t.Helper()
	st, err := store.NewStore(types.StoreConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return &Engine{
		cfg:       cfg,
		planner:   p,
		assets:    a,
		renderer:  r,
		gate:      g,
		store:     st,
		log:       logger.Nop(),
		cancelled: make(map[string]bool),
	}
}

func defaultCfg() types.EngineConfig {
	return types.EngineConfig{}.WithDefaults()
}

func waitTerminal(t *testing.T, e *Engine, id string) *types.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

// --- tests ---

func TestJobCompletes(t *testing.T) {
	r := &fakeRenderer{dir: t.TempDir()}
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, r, &fakeGate{passCycle: 1})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job := waitTerminal(t, e, id)

	if job.State != types.StateCompleted {
		t.Fatalf("state = %s, want completed (%s: %s)", job.State, job.FailureReason, job.FailureDetail)
	}
	if job.FinalArtifact == nil {
		t.Fatal("completed job must carry a final artifact")
	}
	if job.FailureReason != "" {
		t.Errorf("completed job has failure reason %q", job.FailureReason)
	}
	if len(job.RenderAttempts) != 1 || len(job.ValidationReports) != 1 {
		t.Errorf("attempts=%d reports=%d, want 1 and 1", len(job.RenderAttempts), len(job.ValidationReports))
	}
	if !job.RenderAttempts[0].Success || job.RenderAttempts[0].Artifact == nil {
		t.Errorf("successful attempt not recorded: %+v", job.RenderAttempts[0])
	}
}

func TestSubmitRejectsMalformedRequest(t *testing.T) {
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, &fakeRenderer{dir: t.TempDir()}, &fakeGate{passCycle: 1})
	_, err := e.Submit(context.Background(), types.ContentRequest{OutputFormat: types.FormatDocument})
	if err == nil {
		t.Fatal("want error for missing title")
	}
}

func TestPlanningExhaustedIsFatal(t *testing.T) {
	p := &fakePlanner{err: &chain.ExhaustedError{Capability: "planner"}}
	e := testEngine(t, defaultCfg(), p, &fakeAssets{}, &fakeRenderer{dir: t.TempDir()}, &fakeGate{passCycle: 1})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	job := waitTerminal(t, e, id)

	if job.State != types.StateFailed || job.FailureReason != types.ReasonPlanningExhausted {
		t.Errorf("state=%s reason=%s, want failed/planning_exhausted", job.State, job.FailureReason)
	}
	if job.FinalArtifact != nil {
		t.Error("failed job must not carry a final artifact")
	}
	if job.Plan != nil {
		t.Error("failed planning must discard the partial plan")
	}
}

func TestAssetFailureIsNotFatal(t *testing.T) {
	failed := []types.SectionAssets{
		{SectionIndex: 0, Assets: []types.Asset{
			{Kind: types.AssetImage, Status: types.AssetFailed, Error: "all providers exhausted"},
			{Kind: types.AssetIcon, Provider: "iconify", URI: "https://icon.example/x.svg", Status: types.AssetOK},
		}},
	}
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{result: failed},
		&fakeRenderer{dir: t.TempDir()}, &fakeGate{passCycle: 1})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	job := waitTerminal(t, e, id)

	if job.State != types.StateCompleted {
		t.Fatalf("state = %s, want completed despite failed assets", job.State)
	}
	if len(job.SectionAssets) != 1 {
		t.Fatalf("section assets lost: %+v", job.SectionAssets)
	}
}

func TestRenderingExhaustedIsFatal(t *testing.T) {
	r := &fakeRenderer{dir: t.TempDir(), err: &chain.ExhaustedError{Capability: "render/document"}}
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, r, &fakeGate{passCycle: 1})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	job := waitTerminal(t, e, id)

	if job.State != types.StateFailed || job.FailureReason != types.ReasonRenderingExhausted {
		t.Errorf("state=%s reason=%s, want failed/rendering_exhausted", job.State, job.FailureReason)
	}
	// Every engine tried this cycle is in the attempt log.
	if len(job.RenderAttempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(job.RenderAttempts))
	}
	for _, a := range job.RenderAttempts {
		if a.Success || a.ErrorKind != "unavailable" {
			t.Errorf("attempt should record the failure: %+v", a)
		}
	}
}

func TestValidationExhaustedAfterBoundedRetries(t *testing.T) {
	cfg := defaultCfg()
	cfg.Validation.RenderRetries = 2
	r := &fakeRenderer{dir: t.TempDir()}
	e := testEngine(t, cfg, &fakePlanner{plan: testPlan()}, &fakeAssets{}, r, &fakeGate{})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	job := waitTerminal(t, e, id)

	if job.State != types.StateFailed || job.FailureReason != types.ReasonValidationExhausted {
		t.Fatalf("state=%s reason=%s, want failed/validation_exhausted", job.State, job.FailureReason)
	}
	// Initial cycle plus two retries, no more.
	if got := r.cycles.Load(); got != 3 {
		t.Errorf("render cycles = %d, want 3", got)
	}
	if len(job.ValidationReports) != 3 {
		t.Errorf("reports = %d, want 3", len(job.ValidationReports))
	}
	if len(job.RenderAttempts) != len(job.ValidationReports) {
		t.Errorf("attempts=%d reports=%d, want equal", len(job.RenderAttempts), len(job.ValidationReports))
	}
	if job.FinalArtifact != nil {
		t.Error("failed job must not carry a final artifact")
	}
	if job.BestArtifact == nil {
		t.Error("best-scoring render must be retained for inspection")
	}
}

func TestValidationPassesOnRetry(t *testing.T) {
	r := &fakeRenderer{dir: t.TempDir()}
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, r, &fakeGate{passCycle: 2})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	job := waitTerminal(t, e, id)

	if job.State != types.StateCompleted {
		t.Fatalf("state = %s, want completed on second cycle", job.State)
	}
	if got := r.cycles.Load(); got != 2 {
		t.Errorf("render cycles = %d, want 2", got)
	}
	if job.BestArtifact != nil {
		t.Error("completed job should not expose a best-artifact fallback")
	}
}

func TestCancelIsAdvisory(t *testing.T) {
	r := &fakeRenderer{dir: t.TempDir(), block: make(chan struct{}), started: make(chan struct{}, 1)}
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, r, &fakeGate{passCycle: 1})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-r.started
	if err := e.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// The in-flight render drains; the flag takes effect at the next
	// stage boundary.
	close(r.block)

	job := waitTerminal(t, e, id)
	if job.State != types.StateFailed || job.FailureReason != types.ReasonCallerCancelled {
		t.Errorf("state=%s reason=%s, want failed/caller_cancelled", job.State, job.FailureReason)
	}
	if got := r.cycles.Load(); got != 1 {
		t.Errorf("render cycles = %d, want 1 (drained, not re-run)", got)
	}
}

func TestCancelTerminalJobFails(t *testing.T) {
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, &fakeRenderer{dir: t.TempDir()}, &fakeGate{passCycle: 1})
	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	waitTerminal(t, e, id)
	if err := e.Cancel(context.Background(), id); err == nil {
		t.Fatal("want error cancelling a terminal job")
	}
}

func TestWallClockTimeout(t *testing.T) {
	cfg := defaultCfg()
	cfg.JobTimeout = 20 * time.Millisecond
	p := &fakePlanner{plan: testPlan(), delay: 80 * time.Millisecond}
	e := testEngine(t, cfg, p, &fakeAssets{}, &fakeRenderer{dir: t.TempDir()}, &fakeGate{passCycle: 1})

	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	job := waitTerminal(t, e, id)

	if job.State != types.StateFailed || job.FailureReason != types.ReasonInternalTimeout {
		t.Errorf("state=%s reason=%s, want failed/internal_timeout", job.State, job.FailureReason)
	}
}

func TestStatusOnQueuedJob(t *testing.T) {
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, &fakeRenderer{dir: t.TempDir()}, &fakeGate{passCycle: 1})

	queued := &types.Job{
		ID: "queued-job", Request: testRequest(), State: types.StateQueued,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := e.store.Put(context.Background(), queued); err != nil {
		t.Fatal(err)
	}

	job, err := e.Status(context.Background(), "queued-job")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.State != types.StateQueued || job.Plan != nil || job.SectionAssets != nil {
		t.Errorf("queued snapshot should be empty: %+v", job)
	}
}

func TestStatusIsIdempotent(t *testing.T) {
	e := testEngine(t, defaultCfg(), &fakePlanner{plan: testPlan()}, &fakeAssets{}, &fakeRenderer{dir: t.TempDir()}, &fakeGate{passCycle: 1})
	id, err := e.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	waitTerminal(t, e, id)

	first, err := e.Status(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Status(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if first.State != second.State || first.UpdatedAt != second.UpdatedAt ||
		len(first.RenderAttempts) != len(second.RenderAttempts) {
		t.Errorf("consecutive reads differ: %+v vs %+v", first, second)
	}
}
