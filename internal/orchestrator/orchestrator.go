/**
 * Recognition Orchestrator - Multi-engine dispatch with fallback and racing
 *
 * Entry point for every recognition request. Checks the result cache, computes
 * a try-order from preferences plus historical quality, then runs either
 * sequential fallback or a parallel race. Every attempt feeds the metrics
 * tracker, exactly one authoritative result comes back, and the winner is
 * cached. The orchestrator never panics: total failure is still a Result.
 */

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/docmill/recognition-worker/internal/cache"
	"github.com/docmill/recognition-worker/internal/engine"
	"github.com/docmill/recognition-worker/internal/logging"
)

// NoEngineID marks results the orchestrator produced itself (total failure).
const NoEngineID = "none"

// Config holds orchestrator configuration.
type Config struct {
	// Cache is the result store; nil disables caching entirely.
	Cache cache.Store
	// Tracker is the quality history; nil creates a fresh one.
	Tracker *MetricsTracker
	// Defaults is the session-default policy applied by Process.
	Defaults Preferences
	// Logger defaults to a component logger on stdout.
	Logger *logging.Logger
}

// Orchestrator dispatches recognition requests across registered engines.
type Orchestrator struct {
	registry *Registry
	tracker  *MetricsTracker
	cache    cache.Store
	defaults Preferences
	logger   *logging.Logger

	totalRequests  atomic.Int64
	totalSuccesses atomic.Int64
	cacheHits      atomic.Int64
}

// New creates an orchestrator. A nil config gets library defaults: no cache,
// fresh tracker, DefaultPreferences.
func New(cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = &Config{}
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewMetricsTracker()
	}

	// Fill only what the caller left unset; a partial Defaults struct keeps
	// its engine lists and mode flags.
	defaults := cfg.Defaults.withDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("Orchestrator")
	}

	return &Orchestrator{
		registry: NewRegistry(),
		tracker:  tracker,
		cache:    cfg.Cache,
		defaults: defaults,
		logger:   logger,
	}
}

// RegisterEngine adds an engine. makeDefault promotes it to the front of the
// session-default preferred list, so it is tried first unless a request
// overrides the ordering.
func (o *Orchestrator) RegisterEngine(e engine.Engine, makeDefault bool) {
	o.registry.Register(e)
	if makeDefault {
		preferred := []string{e.Name()}
		for _, id := range o.defaults.PreferredEngines {
			if id != e.Name() {
				preferred = append(preferred, id)
			}
		}
		o.defaults.PreferredEngines = preferred
	}
	o.logger.Info("Engine registered", "engine", e.Name(), "default", makeDefault)
}

// Tracker exposes the quality history for read-side consumers.
func (o *Orchestrator) Tracker() *MetricsTracker {
	return o.tracker
}

// Process runs one recognition request under the session-default preferences.
func (o *Orchestrator) Process(ctx context.Context, filePath string, opts engine.Options) engine.Result {
	return o.ProcessWith(ctx, filePath, opts, o.defaults)
}

// ProcessWith runs one recognition request under explicit preferences. It
// always returns a Result; total failure is communicated through Success=false
// with EngineID "none".
func (o *Orchestrator) ProcessWith(ctx context.Context, filePath string, opts engine.Options, prefs Preferences) engine.Result {
	prefs = prefs.withDefaults()
	o.totalRequests.Add(1)

	// Cache short-circuit: a hit never touches any engine.
	key, keyErr := o.cacheKey(filePath, opts)
	if keyErr == nil && o.cache != nil {
		if cached, engineID, found := o.cache.Get(ctx, key); found {
			o.cacheHits.Add(1)
			o.totalSuccesses.Add(1)
			o.logger.Info("Cache hit", "file", filePath, "engine", engineID)
			return cached
		}
	}

	order := orderEngines(prefs, o.registry.Available(), o.tracker)
	if len(order) == 0 {
		o.logger.Warn("No engines available", "file", filePath)
		return engine.Failure(NoEngineID, "no recognition engines available", 0)
	}

	var result engine.Result
	if prefs.ParallelMode {
		result = o.runParallel(ctx, filePath, opts, prefs, order)
	} else {
		result = o.runSequential(ctx, filePath, opts, prefs, order)
	}

	if result.Success {
		o.totalSuccesses.Add(1)
		o.storeInCache(ctx, key, keyErr, result)
	}

	return result
}

// runSequential tries engines strictly in order, stopping at the first result
// whose acceptance score clears the threshold and otherwise keeping the best
// success seen so far.
func (o *Orchestrator) runSequential(ctx context.Context, filePath string, opts engine.Options, prefs Preferences, order []string) engine.Result {
	var (
		best      engine.Result
		bestScore float64
		haveBest  bool
		causes    []string
	)

	for _, id := range order {
		eng, ok := o.registry.Get(id)
		if !ok {
			continue
		}

		res := o.attempt(ctx, eng, filePath, opts)
		if !res.Success {
			o.logger.Warn("Engine attempt failed", "engine", id, "cause", res.Error)
			causes = append(causes, fmt.Sprintf("%s: %s", id, res.Error))
			continue
		}

		if !prefs.qualityComparisonEnabled() {
			return res
		}

		score := acceptanceScore(res)
		o.logger.Debug("Attempt scored", "engine", id, "score", score, "threshold", prefs.QualityThreshold)
		if score >= prefs.QualityThreshold {
			return res
		}
		if !haveBest || score > bestScore {
			best, bestScore, haveBest = res, score, true
		}
	}

	if haveBest {
		o.logger.Info("Threshold never met, returning best effort",
			"engine", best.EngineID, "score", bestScore)
		return best
	}

	return exhaustedFailure(causes)
}

// attempt invokes one engine and records a quality sample from the outcome,
// success or failure, exactly once.
func (o *Orchestrator) attempt(ctx context.Context, eng engine.Engine, filePath string, opts engine.Options) engine.Result {
	res := eng.Process(ctx, filePath, opts)
	o.tracker.Record(eng.Name(), sampleFromResult(res))
	return res
}

// exhaustedFailure builds the terminal all-engines-exhausted result. The
// message concatenates every individual failure cause.
func exhaustedFailure(causes []string) engine.Result {
	msg := "all recognition engines failed"
	if len(causes) > 0 {
		msg = strings.Join(causes, "; ")
	}
	return engine.Failure(NoEngineID, msg, 0)
}

func (o *Orchestrator) cacheKey(filePath string, opts engine.Options) (cache.Key, error) {
	if o.cache == nil {
		return "", nil
	}
	key, err := cache.KeyFor(filePath, opts)
	if err != nil {
		// Degrade to always-miss: the engines will surface an unreadable
		// file through their own failure path.
		o.logger.Warn("Cache key derivation failed, bypassing cache", "file", filePath, "error", err)
	}
	return key, err
}

// storeInCache writes the winning result. Cache errors are logged and
// swallowed - they never affect the response.
func (o *Orchestrator) storeInCache(ctx context.Context, key cache.Key, keyErr error, result engine.Result) {
	if o.cache == nil || keyErr != nil {
		return
	}
	if err := o.cache.Put(ctx, key, result, result.EngineID); err != nil {
		o.logger.Warn("Cache write failed", "engine", result.EngineID, "error", err)
	}
}
