// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pdiddy/renderforge/internal/container"
	"github.com/pdiddy/renderforge/internal/provider"
	"github.com/pdiddy/renderforge/pkg/types"
)

// pandocArgs converts markdown on stdin to PDF on stdout.
var pandocArgs = []string{"-f", "markdown", "-t", "pdf", "-o", "-"}

// PandocContainerEngine renders PDF by piping the canonical markdown
// through a pandoc container image. The runtime (docker or podman) is
// detected lazily on first invoke so non-PDF formats work on hosts without
// a container runtime.
type PandocContainerEngine struct {
	Image  string
	Detect func() (container.Runtime, error)

	mu      sync.Mutex
	runtime container.Runtime
}

// Name returns the engine identifier.
func (e *PandocContainerEngine) Name() string { return "pandoc-container" }

// detect returns the cached runtime, probing for one on the first call.
// Only a successful detection is cached, so a runtime installed after
// startup is picked up on a later invoke. One engine instance serves
// concurrent jobs.
func (e *PandocContainerEngine) detect() (container.Runtime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime != nil {
		return e.runtime, nil
	}
	rt, err := e.Detect()
	if err != nil {
		return nil, err
	}
	if err := rt.ImageExists(e.Image); err != nil {
		return nil, err
	}
	e.runtime = rt
	return rt, nil
}

// Invoke renders the PDF. The intermediate markdown is kept next to the
// artifact so validation and debugging can read the text that produced it.
func (e *PandocContainerEngine) Invoke(ctx context.Context, in Input) (types.Artifact, error) {
	if in.Plan.IsEmpty() {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindInvalidInput, "empty plan")
	}

	rt, err := e.detect()
	if err != nil {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "%v", err)
	}

	content := BuildMarkdown(in.Request, in.Plan, in.Assets, false)
	if err := writeSidecar(in, e.Name(), content); err != nil {
		return types.Artifact{}, err
	}

	var out bytes.Buffer
	if err := rt.Run(ctx, e.Image, pandocArgs, strings.NewReader(content), &out); err != nil {
		if ctx.Err() != nil {
			return types.Artifact{}, provider.Errorf(e.Name(), provider.KindTimeout, "pandoc container: %v", err)
		}
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "pandoc container: %v", err)
	}
	if out.Len() == 0 {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnknown, "pandoc produced empty output")
	}

	path := attemptPath(in, e.Name(), ".pdf")
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "writing %s: %v", path, err)
	}
	return artifactFor(path, in.Request.OutputFormat, e.Name(), "application/pdf")
}

// pandocRunner abstracts the local pandoc binary for testing.
type pandocRunner interface {
	LookPath(file string) (string, error)
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

type osPandocRunner struct{}

func (osPandocRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osPandocRunner) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	return cmd.Run()
}

// PandocExecEngine renders PDF with a locally installed pandoc binary. It
// is the fallback when no container runtime is present.
type PandocExecEngine struct {
	// Runner is replaced in tests; nil means the real binary.
	Runner pandocRunner
}

// Name returns the engine identifier.
func (e *PandocExecEngine) Name() string { return "pandoc-exec" }

// Invoke renders the PDF via the local pandoc binary.
func (e *PandocExecEngine) Invoke(ctx context.Context, in Input) (types.Artifact, error) {
	if in.Plan.IsEmpty() {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindInvalidInput, "empty plan")
	}
	runner := e.Runner
	if runner == nil {
		runner = osPandocRunner{}
	}
	if _, err := runner.LookPath("pandoc"); err != nil {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "pandoc not on PATH: %v", err)
	}

	content := BuildMarkdown(in.Request, in.Plan, in.Assets, false)
	if err := writeSidecar(in, e.Name(), content); err != nil {
		return types.Artifact{}, err
	}

	var out bytes.Buffer
	if err := runner.RunPiped(ctx, "pandoc", pandocArgs, strings.NewReader(content), &out); err != nil {
		if ctx.Err() != nil {
			return types.Artifact{}, provider.Errorf(e.Name(), provider.KindTimeout, "pandoc: %v", err)
		}
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "pandoc: %v", err)
	}
	if out.Len() == 0 {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnknown, "pandoc produced empty output")
	}

	path := attemptPath(in, e.Name(), ".pdf")
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return types.Artifact{}, provider.Errorf(e.Name(), provider.KindUnavailable, "writing %s: %v", path, err)
	}
	return artifactFor(path, in.Request.OutputFormat, e.Name(), "application/pdf")
}

// writeSidecar stores the markdown source beside a binary artifact. The
// quality gate scores this text when the artifact itself is not readable
// as text.
func writeSidecar(in Input, engine, content string) error {
	path := attemptPath(in, engine, ".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return provider.Errorf(engine, provider.KindUnavailable, "writing source sidecar %s: %v", path, err)
	}
	return nil
}
