// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/renderforge/internal/job"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/store"
	"github.com/pdiddy/renderforge/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one generation job and print the artifact path",
	Long: `Generate submits a single job built from flags, waits for it to finish,
and prints the artifact path. Exit status is non-zero when the job fails;
the failure reason and attempt history go to stderr.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("title", "", "content title (required)")
	generateCmd.Flags().String("brief", "", "one-paragraph brief of the content")
	generateCmd.Flags().StringArray("note", nil, "topical note, one section each (repeatable)")
	generateCmd.Flags().String("format", "document", "output format: slidedeck, document, pdf, or webpage")
	generateCmd.Flags().String("style", "", "style or theme tag")
	generateCmd.Flags().Bool("images", false, "acquire an illustration per section")
	generateCmd.Flags().Bool("icons", false, "acquire an icon per section")
	generateCmd.Flags().String("language", "", "language tag (default en)")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("title")
	brief, _ := cmd.Flags().GetString("brief")
	notes, _ := cmd.Flags().GetStringArray("note")
	format, _ := cmd.Flags().GetString("format")
	style, _ := cmd.Flags().GetString("style")
	images, _ := cmd.Flags().GetBool("images")
	icons, _ := cmd.Flags().GetBool("icons")
	language, _ := cmd.Flags().GetString("language")

	req := types.ContentRequest{
		Title:         title,
		Brief:         brief,
		Notes:         notes,
		OutputFormat:  types.OutputFormat(format),
		Style:         style,
		IncludeImages: images,
		IncludeIcons:  icons,
		Language:      language,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logMode())
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening job store: %w", err)
	}
	defer st.Close()

	eng, err := job.NewEngine(cfg, loadedSecrets, &http.Client{}, st, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	id, err := eng.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "job %s submitted\n", id)

	final, err := watch(ctx, eng, id)
	if err != nil {
		return err
	}

	if final.State == types.StateCompleted {
		fmt.Println(final.FinalArtifact.Path)
		return nil
	}

	fmt.Fprintf(os.Stderr, "job failed: %s (%s)\n", final.FailureReason, final.FailureDetail)
	for _, a := range final.RenderAttempts {
		status := "ok"
		if !a.Success {
			status = fmt.Sprintf("%s: %s", a.ErrorKind, a.Error)
		}
		fmt.Fprintf(os.Stderr, "  cycle %d %-16s %s\n", a.Cycle, a.Engine, status)
	}
	if final.BestArtifact != nil {
		fmt.Fprintf(os.Stderr, "best attempt retained at %s\n", final.BestArtifact.Path)
	}
	return fmt.Errorf("job %s failed: %s", id, final.FailureReason)
}

// watch polls the job until it reaches a terminal state, reporting stage
// transitions as they commit.
func watch(ctx context.Context, eng *job.Engine, id string) (*types.Job, error) {
	var lastState types.JobState
	for {
		j, err := eng.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if j.State != lastState {
			fmt.Fprintf(os.Stderr, "  %s\n", j.State)
			lastState = j.State
		}
		if j.State.Terminal() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
