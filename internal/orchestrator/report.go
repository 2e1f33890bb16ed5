/**
 * Statistics & Recommendation Reporter
 *
 * Read-only view over the accumulated metrics. Nothing here has independent
 * state - every query recomputes from the tracker and the request counters.
 */

package orchestrator

import (
	"context"
	"sort"

	"github.com/docmill/recognition-worker/internal/cache"
)

// EngineReport pairs the derived stats with the current ranking score.
type EngineReport struct {
	EngineStats
	Score float64
}

// Statistics summarizes orchestrator activity.
type Statistics struct {
	TotalRequests  int64
	TotalSuccesses int64
	SuccessRate    float64
	CacheHits      int64
	Cache          *cache.Statistics
	Engines        map[string]EngineReport
}

// Recommendations derives engine guidance from current scores.
type Recommendations struct {
	// RecommendedPrimary is the available engine with the highest score.
	RecommendedPrimary string
	// RecommendedFallback holds the next two by score.
	RecommendedFallback []string
	// AvoidEngines lists engines whose rolling success rate fell below 0.5.
	AvoidEngines []string
}

// Statistics recomputes the current totals and per-engine reports.
func (o *Orchestrator) Statistics() Statistics {
	stats := Statistics{
		TotalRequests:  o.totalRequests.Load(),
		TotalSuccesses: o.totalSuccesses.Load(),
		CacheHits:      o.cacheHits.Load(),
		Engines:        make(map[string]EngineReport),
	}
	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.TotalSuccesses) / float64(stats.TotalRequests)
	}

	for _, id := range o.registry.Names() {
		stats.Engines[id] = EngineReport{
			EngineStats: o.tracker.Stats(id),
			Score:       o.tracker.Score(id),
		}
	}

	if o.cache != nil {
		cacheStats := o.cache.Stats(context.Background())
		stats.Cache = &cacheStats
	}

	return stats
}

// Recommendations ranks available engines by score. Engines with no history
// are never avoid-listed - a zero success rate only means something once at
// least one attempt was observed.
func (o *Orchestrator) Recommendations() Recommendations {
	available := o.registry.Available()

	ranked := append([]string(nil), available...)
	scores := make(map[string]float64, len(ranked))
	for _, id := range ranked {
		scores[id] = o.tracker.Score(id)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	rec := Recommendations{}
	if len(ranked) > 0 {
		rec.RecommendedPrimary = ranked[0]
	}
	if len(ranked) > 1 {
		end := len(ranked)
		if end > 3 {
			end = 3
		}
		rec.RecommendedFallback = append(rec.RecommendedFallback, ranked[1:end]...)
	}

	for _, id := range available {
		s := o.tracker.Stats(id)
		if s.SampleCount > 0 && s.SuccessRate < 0.5 {
			rec.AvoidEngines = append(rec.AvoidEngines, id)
		}
	}

	return rec
}
