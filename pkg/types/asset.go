// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AssetKind distinguishes the two enrichment capabilities.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetIcon  AssetKind = "icon"
)

// AssetStatus records the outcome of one asset acquisition attempt.
type AssetStatus string

const (
	AssetOK     AssetStatus = "ok"
	AssetFailed AssetStatus = "failed"
)

// Asset is one acquired (or failed) visual asset for a section. Failed
// acquisitions are recorded rather than discarded so callers can see which
// providers were tried.
type Asset struct {
	Kind     AssetKind   `json:"kind" yaml:"kind"`
	Provider string      `json:"source_provider" yaml:"source_provider"`
	URI      string      `json:"uri_or_path,omitempty" yaml:"uri_or_path,omitempty"`
	Title    string      `json:"title,omitempty" yaml:"title,omitempty"`
	License  string      `json:"license,omitempty" yaml:"license,omitempty"`
	Status   AssetStatus `json:"status" yaml:"status"`
	Error    string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// SectionAssets holds the assets gathered for one section, in the order they
// settled. A section with zero successful assets is valid; enrichment is
// best-effort. Entries are append-only.
type SectionAssets struct {
	SectionIndex int     `json:"section_index" yaml:"section_index"`
	Assets       []Asset `json:"assets" yaml:"assets"`
}

// Images returns the successfully acquired image assets.
func (s SectionAssets) Images() []Asset { return s.byKind(AssetImage) }

// Icons returns the successfully acquired icon assets.
func (s SectionAssets) Icons() []Asset { return s.byKind(AssetIcon) }

func (s SectionAssets) byKind(kind AssetKind) []Asset {
	var out []Asset
	for _, a := range s.Assets {
		if a.Kind == kind && a.Status == AssetOK {
			out = append(out, a)
		}
	}
	return out
}
