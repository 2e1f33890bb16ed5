/**
 * Vision Engine - Remote cloud recognition service
 *
 * Delegates recognition to a remote vision-OCR service over HTTP. The service
 * selects its own model; this engine only speaks the request/result contract
 * and converts the response into a Result.
 */

package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/docmill/recognition-worker/internal/logging"
)

// availabilityProbeInterval bounds how often IsAvailable hits the remote
// health endpoint. Between probes the last answer is reused.
const availabilityProbeInterval = 30 * time.Second

// visionRequest is the wire request for text extraction.
type visionRequest struct {
	Image          string   `json:"image"` // Base64 encoded image
	Format         string   `json:"format"`
	Languages      []string `json:"languages,omitempty"`
	HighDPI        bool     `json:"highDpi,omitempty"`
	PreferAccuracy bool     `json:"preferAccuracy,omitempty"`
}

// visionResponse is the wire response from the extraction endpoint.
type visionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		ModelUsed  string  `json:"modelUsed"`
		Pages      []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"pages,omitempty"`
	} `json:"data"`
}

// VisionEngine calls a remote vision-OCR service.
type VisionEngine struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger

	mu          sync.Mutex
	lastProbe   time.Time
	lastHealthy bool
}

// VisionConfig holds remote engine configuration.
type VisionConfig struct {
	// Name overrides the engine identifier (default "vision").
	Name string
	// BaseURL is the service root, e.g. "http://ocr-vision:8080".
	BaseURL string
	// RequestTimeout bounds a single recognition call (default 120s).
	RequestTimeout time.Duration
}

// NewVisionEngine creates a remote vision engine client.
func NewVisionEngine(cfg *VisionConfig) (*VisionEngine, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("vision engine base URL is required")
	}

	name := cfg.Name
	if name == "" {
		name = "vision"
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second // Vision tasks can take time
	}

	return &VisionEngine{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("VisionEngine"),
	}, nil
}

// Name returns the engine identifier.
func (v *VisionEngine) Name() string {
	return v.name
}

// IsAvailable probes the remote health endpoint, reusing the last answer for
// a short interval so registry checks stay cheap.
func (v *VisionEngine) IsAvailable() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if time.Since(v.lastProbe) < availabilityProbeInterval {
		return v.lastHealthy
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/health", nil)
	if err != nil {
		v.lastProbe, v.lastHealthy = time.Now(), false
		return false
	}

	resp, err := v.httpClient.Do(req)
	healthy := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	if !healthy {
		v.logger.Warn("Vision service health probe failed", "url", v.baseURL, "error", err)
	}

	v.lastProbe, v.lastHealthy = time.Now(), healthy
	return healthy
}

// Process sends the file to the remote service and converts the response.
func (v *VisionEngine) Process(ctx context.Context, filePath string, opts Options) Result {
	startTime := time.Now()

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return Failure(v.name, fmt.Sprintf("failed to read file: %v", err), time.Since(startTime))
	}

	reqBody, err := json.Marshal(&visionRequest{
		Image:          base64.StdEncoding.EncodeToString(fileData),
		Format:         "base64",
		Languages:      opts.Languages,
		HighDPI:        opts.HighDPI,
		PreferAccuracy: opts.MinConfidence >= 0.9,
	})
	if err != nil {
		return Failure(v.name, fmt.Sprintf("failed to marshal request: %v", err), time.Since(startTime))
	}

	endpoint := v.baseURL + "/api/vision/extract-text"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return Failure(v.name, fmt.Sprintf("failed to create request: %v", err), time.Since(startTime))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "recognition-worker")

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return Failure(v.name, fmt.Sprintf("vision request failed: %v", err), time.Since(startTime))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return Failure(v.name, fmt.Sprintf("failed to read response: %v", err), time.Since(startTime))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Failure(v.name, fmt.Sprintf("vision service returned HTTP %d", resp.StatusCode), time.Since(startTime))
	}

	var parsed visionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Failure(v.name, fmt.Sprintf("failed to decode response: %v", err), time.Since(startTime))
	}

	if !parsed.Success {
		cause := parsed.Message
		if cause == "" {
			cause = "vision service reported failure"
		}
		return Failure(v.name, cause, time.Since(startTime))
	}

	v.logger.Debug("Vision extraction complete",
		"model", parsed.Data.ModelUsed,
		"confidence", parsed.Data.Confidence,
		"chars", len(parsed.Data.Text))

	var pages []Page
	if opts.Shape != OutputPlainText {
		for i, p := range parsed.Data.Pages {
			pages = append(pages, Page{
				PageNumber: i + 1,
				Text:       p.Text,
				Confidence: p.Confidence,
			})
		}
		if len(pages) == 0 {
			pages = []Page{{PageNumber: 1, Text: parsed.Data.Text, Confidence: parsed.Data.Confidence}}
		}
	}

	return NewResult(v.name, parsed.Data.Text, parsed.Data.Confidence, pages, time.Since(startTime))
}
