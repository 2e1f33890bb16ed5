package orchestrator

import "time"

// Default preference values applied when the caller leaves them unset.
const (
	DefaultQualityThreshold  = 0.7
	DefaultMaxProcessingTime = 30 * time.Second
)

// Preferences is the per-request (or session-default) orchestration policy.
// Immutable per request.
type Preferences struct {
	// PreferredEngines is the caller-declared priority order.
	PreferredEngines []string `json:"preferredEngines,omitempty"`
	// FallbackEngines is tried after the preferred list.
	FallbackEngines []string `json:"fallbackEngines,omitempty"`
	// QualityThreshold is the minimum acceptance score required to stop
	// sequential fallback early (default 0.7).
	QualityThreshold float64 `json:"qualityThreshold,omitempty"`
	// MaxProcessingTime is the wall-clock budget shared by a parallel race
	// (default 30s).
	MaxProcessingTime time.Duration `json:"maxProcessingTime,omitempty"`
	// ParallelMode races up to three engines instead of sequential fallback.
	ParallelMode bool `json:"parallelMode,omitempty"`
	// QualityComparison enables acceptance-score judging of results. Nil
	// means enabled; a caller opts out with an explicit false. When disabled
	// the first successful attempt wins outright.
	QualityComparison *bool `json:"qualityComparison,omitempty"`
}

// DefaultPreferences returns the session-default policy.
func DefaultPreferences() Preferences {
	enabled := true
	return Preferences{
		QualityThreshold:  DefaultQualityThreshold,
		MaxProcessingTime: DefaultMaxProcessingTime,
		QualityComparison: &enabled,
	}
}

// qualityComparisonEnabled reports the effective flag; unset means enabled.
func (p Preferences) qualityComparisonEnabled() bool {
	return p.QualityComparison == nil || *p.QualityComparison
}

// withDefaults fills unset fields, leaving everything the caller did set
// intact. Zero threshold or budget means "use the default" - a caller wanting
// to accept anything sets a negative threshold explicitly.
func (p Preferences) withDefaults() Preferences {
	if p.QualityThreshold == 0 {
		p.QualityThreshold = DefaultQualityThreshold
	}
	if p.MaxProcessingTime <= 0 {
		p.MaxProcessingTime = DefaultMaxProcessingTime
	}
	if p.QualityComparison == nil {
		enabled := true
		p.QualityComparison = &enabled
	}
	return p
}
