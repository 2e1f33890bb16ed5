/**
 * Recognition Types - Shared data structures for engine results
 *
 * Common value types exchanged between the orchestrator and every engine.
 */

package engine

import (
	"strings"
	"time"
	"unicode/utf8"
)

// OutputShape selects the desired shape of a recognition result.
type OutputShape string

const (
	// OutputPlainText returns the concatenated document text only.
	OutputPlainText OutputShape = "text"
	// OutputPaged returns text with the per-page breakdown populated.
	OutputPaged OutputShape = "paged"
)

// Options carries immutable request parameters. They are passed unchanged to
// every engine attempt and participate in the cache key.
type Options struct {
	// Languages holds language hints in engine-native codes (e.g. "eng").
	Languages []string `json:"languages,omitempty"`
	// MinConfidence is the minimum confidence the caller will accept.
	MinConfidence float64 `json:"minConfidence,omitempty"`
	// HighDPI requests high-resolution preprocessing where the engine
	// supports it.
	HighDPI bool `json:"highDpi,omitempty"`
	// Shape selects the output shape.
	Shape OutputShape `json:"shape,omitempty"`
}

// Page is a single page of a recognition result.
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result is the immutable outcome of one recognition attempt. Produced once
// per attempt and never mutated after creation.
type Result struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Pages      []Page        `json:"pages,omitempty"`
	Duration   time.Duration `json:"duration"`
	EngineID   string        `json:"engineId"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	WordCount  int           `json:"wordCount"`
	CharCount  int           `json:"charCount"`
}

// NewResult builds a successful Result and derives the word/char counts from
// the recognized text.
func NewResult(engineID, text string, confidence float64, pages []Page, duration time.Duration) Result {
	return Result{
		Text:       text,
		Confidence: confidence,
		Pages:      pages,
		Duration:   duration,
		EngineID:   engineID,
		Success:    true,
		WordCount:  len(strings.Fields(text)),
		CharCount:  utf8.RuneCountInString(text),
	}
}

// Failure builds a failed Result carrying a human-readable cause.
func Failure(engineID, cause string, duration time.Duration) Result {
	return Result{
		Duration: duration,
		EngineID: engineID,
		Success:  false,
		Error:    cause,
	}
}
