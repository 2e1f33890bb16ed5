package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docmill/recognition-worker/internal/engine"
)

func recordHistory(tracker *MetricsTracker, id string, successRate float64, confidence float64) {
	for i := 0; i < 10; i++ {
		sample := QualitySample{Duration: time.Second}
		if float64(i) < successRate*10 {
			sample.Success = true
			sample.Confidence = confidence
			sample.WordCount = 100
			sample.CharCount = 500
		}
		tracker.Record(id, sample)
	}
}

func TestRecommendationsRanking(t *testing.T) {
	good := succeeding("good", 0.9, time.Second, 100)
	medium := succeeding("medium", 0.9, time.Second, 100)
	flaky := succeeding("flaky", 0.9, time.Second, 100)
	fresh := succeeding("fresh", 0.9, time.Second, 100)
	o := newTestOrchestrator(nil, good, medium, flaky, fresh)

	recordHistory(o.Tracker(), "good", 1.0, 0.95)
	recordHistory(o.Tracker(), "medium", 0.8, 0.7)
	recordHistory(o.Tracker(), "flaky", 0.2, 0.9)
	// "fresh" has no history: neutral score, never avoid-listed.

	rec := o.Recommendations()

	assert.Equal(t, "good", rec.RecommendedPrimary)
	assert.Len(t, rec.RecommendedFallback, 2)
	assert.Equal(t, "medium", rec.RecommendedFallback[0])
	assert.Equal(t, []string{"flaky"}, rec.AvoidEngines)
}

func TestRecommendationsExcludeUnavailable(t *testing.T) {
	offline := succeeding("offline", 0.9, time.Second, 100)
	offline.available = false
	online := succeeding("online", 0.9, time.Second, 100)
	o := newTestOrchestrator(nil, offline, online)

	rec := o.Recommendations()

	assert.Equal(t, "online", rec.RecommendedPrimary)
	assert.Empty(t, rec.RecommendedFallback)
	assert.NotContains(t, rec.AvoidEngines, "offline")
}

func TestStatisticsCounters(t *testing.T) {
	doc := tempDocument(t)

	ok := succeeding("ok", 0.9, time.Second, 100)
	bad := failing("bad", "always broken")
	o := newTestOrchestrator(nil, ok, bad)

	o.ProcessWith(context.Background(), doc, engine.Options{}, Preferences{PreferredEngines: []string{"ok"}})
	o.ProcessWith(context.Background(), doc, engine.Options{HighDPI: true}, Preferences{PreferredEngines: []string{"bad"}, FallbackEngines: []string{"ok"}})

	stats := o.Statistics()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.TotalSuccesses)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
	assert.Nil(t, stats.Cache, "no cache configured")

	report, ok2 := stats.Engines["bad"]
	assert.True(t, ok2)
	assert.Equal(t, 1, report.SampleCount)
	assert.Zero(t, report.SuccessRate)
}

func TestStatisticsIncludeCacheStats(t *testing.T) {
	store := newFakeCache()
	o := newTestOrchestrator(store, succeeding("ok", 0.9, time.Second, 100))

	stats := o.Statistics()
	assert.NotNil(t, stats.Cache)
}
