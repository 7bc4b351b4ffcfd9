// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for the generation engine:
// content requests, plans, assets, jobs, and the configuration surface.
package types

// OutputFormat selects the artifact format a job produces.
type OutputFormat string

const (
	FormatSlideDeck OutputFormat = "slidedeck"
	FormatDocument  OutputFormat = "document"
	FormatPDF       OutputFormat = "pdf"
	FormatWebpage   OutputFormat = "webpage"
)

// Valid reports whether f is a recognized output format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatSlideDeck, FormatDocument, FormatPDF, FormatWebpage:
		return true
	}
	return false
}

// ContentRequest is the immutable input to a generation job. It is created
// once per incoming call and never mutated afterwards.
type ContentRequest struct {
	Title         string       `json:"title" yaml:"title"`
	Brief         string       `json:"brief" yaml:"brief"`
	Notes         []string     `json:"notes" yaml:"notes"`
	OutputFormat  OutputFormat `json:"output_format" yaml:"output_format"`
	Style         string       `json:"style,omitempty" yaml:"style,omitempty"`
	IncludeImages bool         `json:"include_images" yaml:"include_images"`
	IncludeIcons  bool         `json:"include_icons" yaml:"include_icons"`
	Language      string       `json:"language,omitempty" yaml:"language,omitempty"`
	ClientID      string       `json:"client_id,omitempty" yaml:"client_id,omitempty"`
}

// Validate checks the request for structural problems that no provider can
// recover from. A non-nil error means the request is malformed, not that any
// provider is unavailable.
func (r ContentRequest) Validate() error {
	if r.Title == "" {
		return &RequestError{Field: "title", Reason: "must not be empty"}
	}
	if !r.OutputFormat.Valid() {
		return &RequestError{Field: "output_format", Reason: "must be one of slidedeck, document, pdf, webpage"}
	}
	return nil
}

// RequestError describes a malformed field in a ContentRequest.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return "invalid request: " + e.Field + " " + e.Reason
}
