/**
 * Tesseract Engine - Local offline recognition
 *
 * Simple, free, offline OCR using Tesseract. Usually the fastest engine in
 * the registry; confidence is estimated from text quality indicators because
 * plain text extraction carries no per-word confidences.
 */

package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs recognition through a local Tesseract installation.
type TesseractEngine struct {
	binaryPath string
}

// TesseractConfig holds Tesseract configuration.
type TesseractConfig struct {
	BinaryPath string
}

// NewTesseractEngine creates a Tesseract-backed engine.
func NewTesseractEngine(cfg *TesseractConfig) (*TesseractEngine, error) {
	if cfg == nil {
		cfg = &TesseractConfig{}
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "/usr/bin/tesseract"
	}

	return &TesseractEngine{
		binaryPath: cfg.BinaryPath,
	}, nil
}

// Name returns the engine identifier.
func (t *TesseractEngine) Name() string {
	return "tesseract"
}

// IsAvailable checks that the Tesseract binary exists.
func (t *TesseractEngine) IsAvailable() bool {
	info, err := os.Stat(t.binaryPath)
	return err == nil && !info.IsDir()
}

// Process performs OCR using Tesseract.
func (t *TesseractEngine) Process(ctx context.Context, filePath string, opts Options) Result {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return Failure(t.Name(), fmt.Sprintf("cancelled before start: %v", err), time.Since(startTime))
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(opts.Languages) > 0 {
		if err := client.SetLanguage(opts.Languages...); err != nil {
			return Failure(t.Name(), fmt.Sprintf("failed to set languages: %v", err), time.Since(startTime))
		}
	}

	if err := client.SetImage(filePath); err != nil {
		return Failure(t.Name(), fmt.Sprintf("failed to set image: %v", err), time.Since(startTime))
	}

	text, err := client.Text()
	if err != nil {
		return Failure(t.Name(), fmt.Sprintf("tesseract OCR failed: %v", err), time.Since(startTime))
	}

	confidence := estimateTesseractConfidence(text)

	pages := []Page{
		{
			PageNumber: 1,
			Text:       text,
			Confidence: confidence,
		},
	}
	if opts.Shape == OutputPlainText {
		pages = nil
	}

	return NewResult(t.Name(), text, confidence, pages, time.Since(startTime))
}

// estimateTesseractConfidence estimates confidence based on text quality.
func estimateTesseractConfidence(text string) float64 {
	confidence := 0.5 // Base confidence

	// Check text length
	if len(text) > 1000 {
		confidence += 0.1
	}
	if len(text) > 5000 {
		confidence += 0.1
	}

	// Check for coherent words (simple heuristic)
	words := strings.Fields(text)
	if len(words) > 100 {
		confidence += 0.1
	}

	// Check for reasonable character distribution
	alphaCount := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alphaCount++
		}
	}
	if len(text) > 0 {
		alphaRatio := float64(alphaCount) / float64(len(text))
		if alphaRatio > 0.5 && alphaRatio < 0.9 {
			confidence += 0.1
		}
	}

	// Cap at reasonable maximum for Tesseract
	if confidence > 0.85 {
		confidence = 0.85
	}

	return confidence
}
