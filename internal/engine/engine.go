/**
 * Engine Contract - Pluggable recognition backends
 *
 * Every OCR engine (local library, cloud API) plugs into the orchestrator
 * through this interface. Engines never raise on recognition failure: they
 * report it through a Result with Success=false and a cause string.
 */

package engine

import "context"

// Engine is implemented by every recognition backend.
type Engine interface {
	// Name returns the stable engine identifier used for registration,
	// metrics tracking and cache metadata.
	Name() string

	// IsAvailable reports whether the engine is currently usable. It must be
	// cheap (a binary stat, a cached health probe) - the registry calls it on
	// every request.
	IsAvailable() bool

	// Process runs recognition on the file. It may block for the duration of
	// recognition; the context carries a best-effort cancellation signal that
	// engines should honor when they can. Any failure is returned as a Result
	// with Success=false and an error description, never as a panic.
	Process(ctx context.Context, filePath string, opts Options) Result
}
