// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by providers that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "renderforge/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LLMConfig holds settings for providers that call a Generative AI API.
type LLMConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the API. Empty means: resolve from
	// the secrets directory.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint for OpenAI-compatible gateways.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// ChainConfig configures one fallback chain: the ordered provider names and
// the per-provider invocation timeout. Order is a correctness requirement,
// not a hint; chains try providers exactly in this order.
type ChainConfig struct {
	// Providers is the priority-ordered list of provider names.
	Providers []string `json:"providers" yaml:"providers"`

	// ProviderTimeout bounds a single provider invocation.
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout"`

	// SameProviderRetries is how many times a RateLimited provider is
	// retried before the chain moves on (default 1).
	SameProviderRetries int `json:"same_provider_retries" yaml:"same_provider_retries"`
}

// PlannerConfig configures the planning stage.
type PlannerConfig struct {
	Chain ChainConfig `json:"chain" yaml:"chain"`
	LLM   LLMConfig   `json:"llm" yaml:"llm"`

	// MaxSections caps the plan length (default 12).
	MaxSections int `json:"max_sections" yaml:"max_sections"`
}

// ResearchConfig configures per-section research enrichment.
type ResearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Enabled turns research enrichment on. Research failures never fail
	// a job; enrichment is best-effort.
	Enabled bool        `json:"enabled" yaml:"enabled"`
	Chain   ChainConfig `json:"chain" yaml:"chain"`

	// MaxKeyPoints caps the research-derived key points added per
	// section (default 3).
	MaxKeyPoints int `json:"max_key_points" yaml:"max_key_points"`

	// Email is sent to polite-pool APIs that ask for a contact address.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// AssetsConfig configures the section asset orchestrator.
type AssetsConfig struct {
	HTTPConfig `yaml:",inline"`

	ImageChain ChainConfig `json:"image_chain" yaml:"image_chain"`
	IconChain  ChainConfig `json:"icon_chain" yaml:"icon_chain"`

	// MaxConcurrentSections bounds how many sections have outstanding
	// asset calls at once (default 4). Sections beyond the bound queue
	// until a slot frees.
	MaxConcurrentSections int `json:"max_concurrent_sections" yaml:"max_concurrent_sections"`

	// MaxAssetsPerSection caps successful assets recorded per kind per
	// section (default 1).
	MaxAssetsPerSection int `json:"max_assets_per_section" yaml:"max_assets_per_section"`
}

// RenderConfig configures the format generator chains.
type RenderConfig struct {
	// Engines maps each output format to its priority-ordered engine
	// list, e.g. document: [htmldoc, markdown, plaintext].
	Engines map[OutputFormat][]string `json:"engines" yaml:"engines"`

	// AttemptTimeout bounds one engine invocation. Render attempts are
	// expensive (seconds), so this must be strictly shorter than the job
	// timeout.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout"`

	// OutputDir is where artifacts are written, one subdirectory per job.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// PandocImage is the container image for the PDF engine
	// (default "pandoc/latex:latest").
	PandocImage string `json:"pandoc_image,omitempty" yaml:"pandoc_image,omitempty"`
}

// ValidationConfig configures the quality gate.
type ValidationConfig struct {
	// Thresholds maps axis name to the minimum passing score in [0,1].
	// Known axes: section_coverage, section_order, content_length.
	Thresholds map[string]float64 `json:"thresholds" yaml:"thresholds"`

	// RenderRetries is the number of additional render cycles allowed
	// after a failed validation (default 2). The job performs at most
	// RenderRetries+1 cycles.
	RenderRetries int `json:"render_retries" yaml:"render_retries"`

	// MinSectionChars is the per-section minimum content length the
	// content_length axis measures against (default 80).
	MinSectionChars int `json:"min_section_chars" yaml:"min_section_chars"`
}

// StoreConfig configures job persistence.
type StoreConfig struct {
	// Dir is the directory holding the SQLite job database.
	Dir string `json:"dir" yaml:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`
}

// EngineConfig groups the whole configuration surface of the orchestration
// engine. It is immutable once constructed; stages receive it by value so
// tests and individual jobs can override fields without shared state.
type EngineConfig struct {
	Planner    PlannerConfig    `json:"planner" yaml:"planner"`
	Research   ResearchConfig   `json:"research" yaml:"research"`
	Assets     AssetsConfig     `json:"assets" yaml:"assets"`
	Render     RenderConfig     `json:"render" yaml:"render"`
	Validation ValidationConfig `json:"validation" yaml:"validation"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Server     ServerConfig     `json:"server" yaml:"server"`

	// JobTimeout is the overall wall-clock deadline measured from
	// submission (default 5m). It does not reset on stage transitions.
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`
}

// WithDefaults returns a copy of cfg with zero values replaced by defaults.
func (c EngineConfig) WithDefaults() EngineConfig {
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Minute
	}
	if c.Planner.MaxSections <= 0 {
		c.Planner.MaxSections = 12
	}
	if c.Planner.Chain.ProviderTimeout <= 0 {
		c.Planner.Chain.ProviderTimeout = 60 * time.Second
	}
	if len(c.Planner.Chain.Providers) == 0 {
		c.Planner.Chain.Providers = []string{"openai", "outline"}
	}
	if c.Research.MaxKeyPoints <= 0 {
		c.Research.MaxKeyPoints = 3
	}
	if c.Research.Chain.ProviderTimeout <= 0 {
		c.Research.Chain.ProviderTimeout = 15 * time.Second
	}
	if len(c.Research.Chain.Providers) == 0 {
		c.Research.Chain.Providers = []string{"openalex"}
	}
	if c.Assets.MaxConcurrentSections <= 0 {
		c.Assets.MaxConcurrentSections = 4
	}
	if c.Assets.MaxAssetsPerSection <= 0 {
		c.Assets.MaxAssetsPerSection = 1
	}
	if c.Assets.ImageChain.ProviderTimeout <= 0 {
		c.Assets.ImageChain.ProviderTimeout = 15 * time.Second
	}
	if len(c.Assets.ImageChain.Providers) == 0 {
		c.Assets.ImageChain.Providers = []string{"openverse", "wikimedia"}
	}
	if c.Assets.IconChain.ProviderTimeout <= 0 {
		c.Assets.IconChain.ProviderTimeout = 15 * time.Second
	}
	if len(c.Assets.IconChain.Providers) == 0 {
		c.Assets.IconChain.Providers = []string{"iconify"}
	}
	if c.Render.AttemptTimeout <= 0 {
		c.Render.AttemptTimeout = 90 * time.Second
	}
	if c.Render.OutputDir == "" {
		c.Render.OutputDir = "output/artifacts"
	}
	if c.Render.PandocImage == "" {
		c.Render.PandocImage = "pandoc/latex:latest"
	}
	if len(c.Render.Engines) == 0 {
		c.Render.Engines = map[OutputFormat][]string{
			FormatDocument:  {"htmldoc", "markdown", "plaintext"},
			FormatWebpage:   {"htmldoc", "markdown"},
			FormatSlideDeck: {"htmldeck", "markdown"},
			FormatPDF:       {"pandoc-container", "pandoc-exec"},
		}
	}
	if c.Validation.RenderRetries == 0 {
		c.Validation.RenderRetries = 2
	}
	if c.Validation.RenderRetries < 0 {
		c.Validation.RenderRetries = 0
	}
	if c.Validation.MinSectionChars <= 0 {
		c.Validation.MinSectionChars = 80
	}
	if len(c.Validation.Thresholds) == 0 {
		c.Validation.Thresholds = map[string]float64{
			"section_coverage": 1.0,
			"section_order":    1.0,
			"content_length":   0.5,
		}
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "data"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Research.Timeout <= 0 {
		c.Research.Timeout = 15 * time.Second
	}
	if c.Assets.Timeout <= 0 {
		c.Assets.Timeout = 15 * time.Second
	}
	if c.Research.UserAgent == "" {
		c.Research.UserAgent = "renderforge/0.1"
	}
	if c.Assets.UserAgent == "" {
		c.Assets.UserAgent = "renderforge/0.1"
	}
	return c
}
