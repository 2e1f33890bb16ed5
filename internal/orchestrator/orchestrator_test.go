package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmill/recognition-worker/internal/cache"
	"github.com/docmill/recognition-worker/internal/engine"
)

// fakeEngine is a scriptable Engine for executor tests.
type fakeEngine struct {
	name      string
	available bool
	process   func(ctx context.Context) engine.Result
	calls     atomic.Int32
}

func (f *fakeEngine) Name() string      { return f.name }
func (f *fakeEngine) IsAvailable() bool { return f.available }

func (f *fakeEngine) Process(ctx context.Context, filePath string, opts engine.Options) engine.Result {
	f.calls.Add(1)
	return f.process(ctx)
}

// succeeding builds an engine returning a fixed successful result.
func succeeding(name string, confidence float64, duration time.Duration, words int) *fakeEngine {
	return &fakeEngine{
		name:      name,
		available: true,
		process: func(ctx context.Context) engine.Result {
			return engine.Result{
				Text:       "recognized text",
				Confidence: confidence,
				Duration:   duration,
				EngineID:   name,
				Success:    true,
				WordCount:  words,
				CharCount:  words * 5,
			}
		},
	}
}

// failing builds an engine returning a fixed failure.
func failing(name, cause string) *fakeEngine {
	return &fakeEngine{
		name:      name,
		available: true,
		process: func(ctx context.Context) engine.Result {
			return engine.Failure(name, cause, 10*time.Millisecond)
		},
	}
}

type cachedEntry struct {
	result   engine.Result
	engineID string
}

// fakeCache is an in-memory Store for orchestrator tests.
type fakeCache struct {
	entries map[cache.Key]cachedEntry
	putErr  error
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[cache.Key]cachedEntry)}
}

func (f *fakeCache) Get(ctx context.Context, key cache.Key) (engine.Result, string, bool) {
	e, ok := f.entries[key]
	return e.result, e.engineID, ok
}

func (f *fakeCache) Put(ctx context.Context, key cache.Key, result engine.Result, engineID string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.entries[key] = cachedEntry{result, engineID}
	return nil
}

func (f *fakeCache) Stats(ctx context.Context) cache.Statistics {
	return cache.Statistics{Entries: int64(len(f.entries))}
}

func (f *fakeCache) Cleanup(ctx context.Context) int { return 0 }
func (f *fakeCache) Clear(ctx context.Context) error { return nil }

func boolRef(b bool) *bool { return &b }

func tempDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0o644))
	return path
}

func newTestOrchestrator(store cache.Store, engines ...*fakeEngine) *Orchestrator {
	o := New(&Config{Cache: store})
	for _, e := range engines {
		o.RegisterEngine(e, false)
	}
	return o
}

func TestCacheShortCircuit(t *testing.T) {
	doc := tempDocument(t)
	opts := engine.Options{Languages: []string{"eng"}}

	store := newFakeCache()
	key, err := cache.KeyFor(doc, opts)
	require.NoError(t, err)

	cached := engine.NewResult("vision", "cached text", 0.93, nil, 2*time.Second)
	store.entries[key] = cachedEntry{cached, "vision"}

	eng := succeeding("tesseract", 0.9, time.Second, 500)
	o := newTestOrchestrator(store, eng)

	got := o.Process(context.Background(), doc, opts)

	assert.Equal(t, cached, got)
	assert.Equal(t, int32(0), eng.calls.Load(), "cache hit must not touch any engine")

	stats := o.Statistics()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.TotalSuccesses)
}

func TestSequentialStopEarly(t *testing.T) {
	doc := tempDocument(t)

	// Acceptance scores: a ≈ 0.6, b ≈ 0.97.
	a := succeeding("a", 0.8, 15*time.Second, 250)
	b := succeeding("b", 0.95, time.Second, 500)
	c := succeeding("c", 1.0, time.Second, 500)
	o := newTestOrchestrator(nil, a, b, c)

	res := o.ProcessWith(context.Background(), doc, engine.Options{}, Preferences{
		PreferredEngines:  []string{"a", "b", "c"},
		QualityThreshold:  0.8,
	})

	assert.True(t, res.Success)
	assert.Equal(t, "b", res.EngineID)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, int32(0), c.calls.Load(), "accepted result must stop the fallback chain")
}

func TestSequentialBestEffortFallback(t *testing.T) {
	doc := tempDocument(t)

	// Both succeed but stay below an unreachable threshold: a ≈ 0.6, b ≈ 0.7.
	a := succeeding("a", 0.8, 15*time.Second, 250)
	b := succeeding("b", 1.0, 6*time.Second, 40)
	o := newTestOrchestrator(nil, a, b)

	res := o.ProcessWith(context.Background(), doc, engine.Options{}, Preferences{
		PreferredEngines:  []string{"a", "b"},
		QualityThreshold:  0.99,
	})

	assert.True(t, res.Success)
	assert.Equal(t, "b", res.EngineID, "best-so-far success wins when the chain is exhausted")
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestTotalFailureAggregation(t *testing.T) {
	doc := tempDocument(t)

	a := failing("a", "timeout")
	b := failing("b", "invalid format")
	o := newTestOrchestrator(nil, a, b)

	res := o.Process(context.Background(), doc, engine.Options{})

	assert.False(t, res.Success)
	assert.Equal(t, NoEngineID, res.EngineID)
	assert.Contains(t, res.Error, "timeout")
	assert.Contains(t, res.Error, "invalid format")
	assert.Contains(t, res.Error, "; ")
}

func TestNoEnginesAvailable(t *testing.T) {
	doc := tempDocument(t)

	offline := succeeding("offline", 0.9, time.Second, 100)
	offline.available = false
	o := newTestOrchestrator(nil, offline)

	res := o.Process(context.Background(), doc, engine.Options{})

	assert.False(t, res.Success)
	assert.Equal(t, NoEngineID, res.EngineID)
	assert.Equal(t, int32(0), offline.calls.Load())
}

func TestQualityComparisonDisabledAcceptsFirstSuccess(t *testing.T) {
	doc := tempDocument(t)

	// Terrible acceptance score, but comparison is off.
	weak := succeeding("weak", 0.1, 29*time.Second, 1)
	strong := succeeding("strong", 1.0, time.Second, 500)
	o := newTestOrchestrator(nil, weak, strong)

	res := o.ProcessWith(context.Background(), doc, engine.Options{}, Preferences{
		PreferredEngines:  []string{"weak", "strong"},
		QualityThreshold:  0.9,
		QualityComparison: boolRef(false),
	})

	assert.Equal(t, "weak", res.EngineID)
	assert.Equal(t, int32(0), strong.calls.Load())
}

func TestQualityComparisonDefaultsToEnabled(t *testing.T) {
	doc := tempDocument(t)

	// Acceptance scores: weak far below the threshold, strong above it. A
	// payload naming only the threshold must still judge results.
	weak := succeeding("weak", 0.1, 29*time.Second, 1)
	strong := succeeding("strong", 1.0, time.Second, 500)
	o := newTestOrchestrator(nil, weak, strong)

	res := o.ProcessWith(context.Background(), doc, engine.Options{}, Preferences{
		PreferredEngines: []string{"weak", "strong"},
		QualityThreshold: 0.9,
	})

	assert.Equal(t, "strong", res.EngineID, "weak result must not be accepted outright")
	assert.Equal(t, int32(1), weak.calls.Load())
	assert.Equal(t, int32(1), strong.calls.Load())
}

func TestNewKeepsPartialSessionDefaults(t *testing.T) {
	doc := tempDocument(t)

	local := succeeding("local", 0.9, time.Second, 300)
	remote := succeeding("remote", 0.9, time.Second, 300)

	o := New(&Config{Defaults: Preferences{PreferredEngines: []string{"remote"}}})
	o.RegisterEngine(local, false)
	o.RegisterEngine(remote, false)

	res := o.Process(context.Background(), doc, engine.Options{})

	assert.Equal(t, "remote", res.EngineID, "session-default preferred list must survive construction")
	assert.Equal(t, int32(0), local.calls.Load())
}

func TestNewKeepsParallelModeDefault(t *testing.T) {
	doc := tempDocument(t)

	a := succeeding("a", 0.95, time.Second, 400)
	b := succeeding("b", 0.95, time.Second, 400)
	c := succeeding("c", 0.95, time.Second, 400)

	o := New(&Config{Defaults: Preferences{ParallelMode: true}})
	for _, e := range []*fakeEngine{a, b, c} {
		o.RegisterEngine(e, false)
	}

	res := o.Process(context.Background(), doc, engine.Options{})

	assert.True(t, res.Success)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, int32(1), c.calls.Load(), "a parallel session default must race, not fall back sequentially")
}

func TestEveryAttemptRecordsASample(t *testing.T) {
	doc := tempDocument(t)

	a := failing("a", "boom")
	b := succeeding("b", 0.9, time.Second, 500)
	o := newTestOrchestrator(nil, a, b)

	o.Process(context.Background(), doc, engine.Options{})

	assert.Equal(t, 1, o.Tracker().SampleCount("a"), "failed attempts are recorded too")
	assert.Equal(t, 1, o.Tracker().SampleCount("b"))
}

func TestWinnerIsCached(t *testing.T) {
	doc := tempDocument(t)

	store := newFakeCache()
	eng := succeeding("tesseract", 0.9, time.Second, 500)
	o := newTestOrchestrator(store, eng)

	res := o.Process(context.Background(), doc, engine.Options{})
	require.True(t, res.Success)
	assert.Equal(t, 1, store.puts)

	// Second identical request must come from the cache.
	again := o.Process(context.Background(), doc, engine.Options{})
	assert.Equal(t, res, again)
	assert.Equal(t, int32(1), eng.calls.Load())
}

func TestCacheWriteFailureIsSwallowed(t *testing.T) {
	doc := tempDocument(t)

	store := newFakeCache()
	store.putErr = errors.New("redis down")
	eng := succeeding("tesseract", 0.9, time.Second, 500)
	o := newTestOrchestrator(store, eng)

	res := o.Process(context.Background(), doc, engine.Options{})
	assert.True(t, res.Success, "cache errors must never fail the request")
}

func TestCacheKeyFailureDegradesToMiss(t *testing.T) {
	store := newFakeCache()
	eng := succeeding("tesseract", 0.9, time.Second, 500)
	o := newTestOrchestrator(store, eng)

	res := o.Process(context.Background(), filepath.Join(t.TempDir(), "missing.png"), engine.Options{})

	// The file is unreadable for fingerprinting but engines still get their
	// chance (the fake does not read the file at all).
	assert.True(t, res.Success)
	assert.Equal(t, 0, store.puts, "no cache write without a key")
}

func TestRegisterEngineMakeDefault(t *testing.T) {
	doc := tempDocument(t)

	first := succeeding("first", 0.9, time.Second, 500)
	promoted := succeeding("promoted", 0.9, time.Second, 500)
	o := New(nil)
	o.RegisterEngine(first, false)
	o.RegisterEngine(promoted, true)

	res := o.Process(context.Background(), doc, engine.Options{})
	assert.Equal(t, "promoted", res.EngineID)
	assert.Equal(t, int32(0), first.calls.Load())
}

func TestFailureMessageJoinsInOrder(t *testing.T) {
	doc := tempDocument(t)

	a := failing("alpha", "lens cap on")
	b := failing("beta", "out of credit")
	o := newTestOrchestrator(nil, a, b)

	res := o.ProcessWith(context.Background(), doc, engine.Options{}, Preferences{
		PreferredEngines: []string{"alpha", "beta"},
	})

	idxA := strings.Index(res.Error, "lens cap on")
	idxB := strings.Index(res.Error, "out of credit")
	require.GreaterOrEqual(t, idxA, 0)
	require.GreaterOrEqual(t, idxB, 0)
	assert.Less(t, idxA, idxB, "causes appear in attempt order")
}
