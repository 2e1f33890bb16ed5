/**
 * Result Cache Contract - Content-addressed recognition result store
 *
 * A cache entry is per request, not per engine attempt: the key is derived
 * from the file content fingerprint plus normalized request options and never
 * includes engine identity. The winning engine is recorded as entry metadata.
 */

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/docmill/recognition-worker/internal/engine"
)

// Key addresses one cached recognition result.
type Key string

// Statistics reports cache performance counters.
type Statistics struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Store is implemented by the external result cache. Implementations are
// internally thread-safe; the orchestrator adds no locking around them.
type Store interface {
	// Get returns the cached result and the engine that produced it.
	Get(ctx context.Context, key Key) (engine.Result, string, bool)
	// Put stores a result with the winning engine as metadata.
	Put(ctx context.Context, key Key, result engine.Result, engineID string) error
	// Stats returns the current counters.
	Stats(ctx context.Context) Statistics
	// Cleanup evicts stale entries and returns the eviction count.
	Cleanup(ctx context.Context) int
	// Clear drops every entry.
	Clear(ctx context.Context) error
}

// KeyFor derives the deterministic cache key for a request: sha256 over the
// file content plus the normalized options.
func KeyFor(filePath string, opts engine.Options) (Key, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file for fingerprint: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to fingerprint file: %w", err)
	}
	io.WriteString(h, normalizeOptions(opts))

	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

// normalizeOptions renders options in a canonical form so equivalent requests
// share a key regardless of field ordering supplied by the caller.
func normalizeOptions(opts engine.Options) string {
	langs := append([]string(nil), opts.Languages...)
	sort.Strings(langs)

	return fmt.Sprintf("|langs=%s|minconf=%.4f|dpi=%t|shape=%s",
		strings.Join(langs, ","), opts.MinConfidence, opts.HighDPI, opts.Shape)
}
