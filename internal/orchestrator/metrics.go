/**
 * Quality Metrics Tracker - Rolling per-engine quality history
 *
 * Keeps a bounded ring of the most recent attempt outcomes per engine and
 * derives a running quality score from it. The score predicts how good an
 * engine will probably be and feeds the ordering policy; it is distinct from
 * the per-result acceptance score used by the executors.
 */

package orchestrator

import (
	"sync"
	"time"
)

const (
	// sampleWindow bounds the per-engine history. Oldest sample is evicted
	// first once full, so memory stays bounded regardless of request volume.
	sampleWindow = 100

	// neutralScore is returned for engines with no history yet, so new
	// engines are tried but not preferred over proven ones.
	neutralScore = 0.5

	// speedReference is the duration at which the speed term of the score
	// bottoms out at zero.
	speedReference = 30 * time.Second
)

// QualitySample is one historical observation of an engine attempt.
type QualitySample struct {
	Confidence float64
	Duration   time.Duration
	WordCount  int
	CharCount  int
	Success    bool
}

// EngineStats is derived from the current sample window of one engine.
// Recomputed after every new sample; never persisted independently.
type EngineStats struct {
	// AvgConfidence is the rolling average confidence over successes only.
	AvgConfidence float64
	// AvgDuration is the rolling average duration over all attempts.
	AvgDuration time.Duration
	// SuccessRate is the rolling fraction of successful attempts.
	SuccessRate float64
	// SampleCount is the number of samples currently in the window.
	SampleCount int
}

// MetricsTracker maintains bounded rolling quality histories per engine.
// Record and Score are atomic with respect to each other; expected contention
// is low, so a single lock over all rings is enough.
type MetricsTracker struct {
	mu      sync.Mutex
	samples map[string][]QualitySample
}

// NewMetricsTracker creates an empty tracker. One instance per orchestrator;
// injected so lifecycle stays explicit and tests get a fresh tracker.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		samples: make(map[string][]QualitySample),
	}
}

// Record appends a sample to the engine's history, evicting the oldest once
// the window is full.
func (m *MetricsTracker) Record(engineID string, sample QualitySample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ring := append(m.samples[engineID], sample)
	if len(ring) > sampleWindow {
		ring = ring[len(ring)-sampleWindow:]
	}
	m.samples[engineID] = ring
}

// Stats recomputes the derived statistics from the current window.
func (m *MetricsTracker) Stats(engineID string) EngineStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, _ := m.statsLocked(engineID)
	return stats
}

// Score derives the historical ranking score in [0,1]:
// confidence*0.4 + speed*0.2 + successRate*0.3 + richness*0.1.
func (m *MetricsTracker) Score(engineID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, richness := m.statsLocked(engineID)
	if stats.SampleCount == 0 {
		return neutralScore
	}

	speed := 1.0 - stats.AvgDuration.Seconds()/speedReference.Seconds()
	if speed < 0 {
		speed = 0
	}

	score := stats.AvgConfidence*0.4 + speed*0.2 + stats.SuccessRate*0.3 + richness*0.1
	return clamp01(score)
}

// statsLocked computes EngineStats plus the content-richness term
// min(1, (avgWords + avgChars/10)/100) over successful samples.
func (m *MetricsTracker) statsLocked(engineID string) (EngineStats, float64) {
	ring := m.samples[engineID]
	if len(ring) == 0 {
		return EngineStats{}, 0
	}

	var (
		totalDuration time.Duration
		confSum       float64
		wordSum       float64
		charSum       float64
		successes     int
	)
	for _, s := range ring {
		totalDuration += s.Duration
		if s.Success {
			successes++
			confSum += s.Confidence
			wordSum += float64(s.WordCount)
			charSum += float64(s.CharCount)
		}
	}

	stats := EngineStats{
		AvgDuration: totalDuration / time.Duration(len(ring)),
		SuccessRate: float64(successes) / float64(len(ring)),
		SampleCount: len(ring),
	}

	var richness float64
	if successes > 0 {
		stats.AvgConfidence = confSum / float64(successes)
		avgWords := wordSum / float64(successes)
		avgChars := charSum / float64(successes)
		richness = (avgWords + avgChars/10) / 100
		if richness > 1 {
			richness = 1
		}
	}

	return stats, richness
}

// SampleCount returns the current window size for an engine.
func (m *MetricsTracker) SampleCount(engineID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples[engineID])
}

// Oldest returns the oldest sample still in the window, if any. Used by the
// reporter and tests to inspect eviction behavior.
func (m *MetricsTracker) Oldest(engineID string) (QualitySample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ring := m.samples[engineID]
	if len(ring) == 0 {
		return QualitySample{}, false
	}
	return ring[0], true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
