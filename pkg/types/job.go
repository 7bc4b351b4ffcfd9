// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobState is one lifecycle state of a generation job. Transitions move
// strictly forward except for the bounded Rendering/Validating retry loop.
type JobState string

const (
	StateQueued     JobState = "queued"
	StatePlanning   JobState = "planning"
	StateEnriching  JobState = "enriching"
	StateRendering  JobState = "rendering"
	StateValidating JobState = "validating"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// FailureReason is the single stable enum value exposed for a failed job.
type FailureReason string

const (
	ReasonPlanningExhausted   FailureReason = "planning_exhausted"
	ReasonRenderingExhausted  FailureReason = "rendering_exhausted"
	ReasonValidationExhausted FailureReason = "validation_exhausted"
	ReasonCallerCancelled     FailureReason = "caller_cancelled"
	ReasonInternalTimeout     FailureReason = "internal_timeout"
)

// Artifact describes a finished rendered output file.
type Artifact struct {
	Path     string       `json:"path" yaml:"path"`
	Format   OutputFormat `json:"format" yaml:"format"`
	Engine   string       `json:"engine" yaml:"engine"`
	MIMEType string       `json:"mime_type" yaml:"mime_type"`
	Bytes    int64        `json:"bytes" yaml:"bytes"`
}

// RenderAttempt records one invocation of one render engine. Attempts are
// append-only; an attempt is never mutated after creation.
type RenderAttempt struct {
	Cycle     int       `json:"cycle" yaml:"cycle"`
	Engine    string    `json:"engine" yaml:"engine"`
	Success   bool      `json:"success" yaml:"success"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Artifact  *Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time `json:"ended_at" yaml:"ended_at"`
}

// AxisScore is one quality axis score in [0,1] with its configured threshold.
type AxisScore struct {
	Axis      string  `json:"axis" yaml:"axis"`
	Score     float64 `json:"score" yaml:"score"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Met       bool    `json:"met" yaml:"met"`
}

// ValidationReport is the quality gate verdict for one render cycle.
type ValidationReport struct {
	Cycle    int         `json:"cycle" yaml:"cycle"`
	Axes     []AxisScore `json:"axes" yaml:"axes"`
	Pass     bool        `json:"pass" yaml:"pass"`
	Violated []string    `json:"violated,omitempty" yaml:"violated,omitempty"`
}

// TotalScore sums the axis scores; used to pick the best render cycle when
// the retry budget runs out.
func (r ValidationReport) TotalScore() float64 {
	var total float64
	for _, a := range r.Axes {
		total += a.Score
	}
	return total
}

// Job is the aggregate root for one generation request. The job's own runner
// goroutine is the only writer; everyone else reads committed snapshots from
// the store.
type Job struct {
	ID                string             `json:"id" yaml:"id"`
	Request           ContentRequest     `json:"request" yaml:"request"`
	State             JobState           `json:"state" yaml:"state"`
	Plan              *ContentPlan       `json:"plan,omitempty" yaml:"plan,omitempty"`
	SectionAssets     []SectionAssets    `json:"section_assets,omitempty" yaml:"section_assets,omitempty"`
	RenderAttempts    []RenderAttempt    `json:"render_attempts,omitempty" yaml:"render_attempts,omitempty"`
	ValidationReports []ValidationReport `json:"validation_reports,omitempty" yaml:"validation_reports,omitempty"`
	FinalArtifact     *Artifact          `json:"final_artifact,omitempty" yaml:"final_artifact,omitempty"`
	// BestArtifact is retained on validation_exhausted so callers can
	// inspect the highest-scoring render even though the job failed.
	BestArtifact  *Artifact     `json:"best_artifact,omitempty" yaml:"best_artifact,omitempty"`
	FailureReason FailureReason `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	FailureDetail string        `json:"failure_detail,omitempty" yaml:"failure_detail,omitempty"`
	CreatedAt     time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"updated_at"`
}
