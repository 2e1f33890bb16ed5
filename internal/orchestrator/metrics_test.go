package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBoundsHistory(t *testing.T) {
	tracker := NewMetricsTracker()

	for i := 0; i < 150; i++ {
		tracker.Record("tesseract", QualitySample{
			Confidence: float64(i) / 1000, // marker to identify samples
			Duration:   time.Second,
			Success:    true,
		})
	}

	assert.Equal(t, 100, tracker.SampleCount("tesseract"))

	// The first 50 samples must have been evicted; the oldest survivor is
	// sample index 50.
	oldest, ok := tracker.Oldest("tesseract")
	require.True(t, ok)
	assert.InDelta(t, 0.050, oldest.Confidence, 1e-9)
}

func TestScoreNeutralWithoutHistory(t *testing.T) {
	tracker := NewMetricsTracker()
	assert.Equal(t, 0.5, tracker.Score("never-seen"))
}

func TestScoreStaysInBounds(t *testing.T) {
	cases := []struct {
		name    string
		samples []QualitySample
	}{
		{
			name: "perfect fast engine",
			samples: []QualitySample{
				{Confidence: 1.0, Duration: time.Millisecond, WordCount: 10000, CharCount: 100000, Success: true},
			},
		},
		{
			name: "all failures",
			samples: []QualitySample{
				{Duration: time.Minute},
				{Duration: time.Minute},
			},
		},
		{
			name: "pathological values",
			samples: []QualitySample{
				{Confidence: 5.0, Duration: -time.Second, WordCount: -3, Success: true},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := NewMetricsTracker()
			for _, s := range tc.samples {
				tracker.Record("e", s)
			}
			score := tracker.Score("e")
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestScoreFormula(t *testing.T) {
	tracker := NewMetricsTracker()
	tracker.Record("vision", QualitySample{
		Confidence: 0.8,
		Duration:   3 * time.Second,
		WordCount:  50,
		CharCount:  500,
		Success:    true,
	})

	// confidence 0.8*0.4 + speed (1-3/30)*0.2 + success 1.0*0.3
	// + richness min(1,(50+500/10)/100)*0.1 = 0.32 + 0.18 + 0.30 + 0.10
	assert.InDelta(t, 0.90, tracker.Score("vision"), 1e-9)
}

func TestStatsDerivation(t *testing.T) {
	tracker := NewMetricsTracker()
	tracker.Record("e", QualitySample{Confidence: 0.9, Duration: 2 * time.Second, WordCount: 100, Success: true})
	tracker.Record("e", QualitySample{Confidence: 0.7, Duration: 4 * time.Second, WordCount: 50, Success: true})
	tracker.Record("e", QualitySample{Duration: 6 * time.Second}) // failed attempt

	stats := tracker.Stats("e")
	assert.Equal(t, 3, stats.SampleCount)
	// Confidence averages successes only; duration averages all attempts.
	assert.InDelta(t, 0.8, stats.AvgConfidence, 1e-9)
	assert.Equal(t, 4*time.Second, stats.AvgDuration)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
}

func TestStatsEmptyEngine(t *testing.T) {
	tracker := NewMetricsTracker()
	stats := tracker.Stats("missing")
	assert.Zero(t, stats.SampleCount)
	assert.Zero(t, stats.AvgConfidence)
	assert.Zero(t, stats.SuccessRate)
}

func TestRecordConcurrentEngines(t *testing.T) {
	tracker := NewMetricsTracker()

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			id := fmt.Sprintf("engine-%d", g%2)
			for i := 0; i < 200; i++ {
				tracker.Record(id, QualitySample{Confidence: 0.5, Duration: time.Second, Success: true})
				tracker.Score(id)
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	assert.Equal(t, 100, tracker.SampleCount("engine-0"))
	assert.Equal(t, 100, tracker.SampleCount("engine-1"))
}
