/**
 * Parallel Race Executor - Concurrent engine dispatch with a shared deadline
 *
 * Races up to three engines from the try-order under one deadline. Late
 * engines are abandoned fire-and-forget: the orchestrator stops waiting but
 * does not force-kill the call; engines honor the context when they can.
 * Every attempt is recorded exactly once - abandoned attempts as synthesized
 * timeout failures, their eventual real results discarded.
 */

package orchestrator

import (
	"context"
	"fmt"

	"github.com/docmill/recognition-worker/internal/engine"
)

// maxRaceFanOut bounds concurrent attempts so worst-case latency and cost
// stay predictable.
const maxRaceFanOut = 3

type raceOutcome struct {
	index int
	res   engine.Result
}

// runParallel dispatches the selected engines concurrently and picks the
// winner deterministically from the completed set.
func (o *Orchestrator) runParallel(ctx context.Context, filePath string, opts engine.Options, prefs Preferences, order []string) engine.Result {
	selected := order
	if len(selected) > maxRaceFanOut {
		selected = selected[:maxRaceFanOut]
	}

	raceCtx, cancel := context.WithTimeout(ctx, prefs.MaxProcessingTime)
	defer cancel()

	// Buffered so abandoned goroutines can deliver and exit without a
	// reader; leftovers are dropped, never recorded.
	outcomes := make(chan raceOutcome, len(selected))
	for i, id := range selected {
		eng, ok := o.registry.Get(id)
		if !ok {
			outcomes <- raceOutcome{i, engine.Failure(id, "engine disappeared from registry", 0)}
			continue
		}
		go func(i int, eng engine.Engine) {
			outcomes <- raceOutcome{i, eng.Process(raceCtx, filePath, opts)}
		}(i, eng)
	}

	completed := make([]engine.Result, 0, len(selected))
	received := make(map[int]bool, len(selected))

wait:
	for len(completed) < len(selected) {
		select {
		case oc := <-outcomes:
			received[oc.index] = true
			o.tracker.Record(selected[oc.index], sampleFromResult(oc.res))
			completed = append(completed, oc.res)
		case <-raceCtx.Done():
			break wait
		}
	}

	// Results that beat the deadline by a hair may still sit in the buffer.
drain:
	for len(completed) < len(selected) {
		select {
		case oc := <-outcomes:
			received[oc.index] = true
			o.tracker.Record(selected[oc.index], sampleFromResult(oc.res))
			completed = append(completed, oc.res)
		default:
			break drain
		}
	}

	// Attempts that never finished count as timeout failures.
	for i, id := range selected {
		if received[i] {
			continue
		}
		res := engine.Failure(id, fmt.Sprintf("timed out after %v", prefs.MaxProcessingTime), prefs.MaxProcessingTime)
		o.tracker.Record(id, sampleFromResult(res))
		completed = append(completed, res)
		o.logger.Warn("Engine abandoned at deadline", "engine", id, "deadline", prefs.MaxProcessingTime)
	}

	return pickRaceWinner(completed, selected, prefs)
}

// pickRaceWinner selects the authoritative result. Among successes the highest
// acceptance score wins, ties broken by try-order so the choice is
// deterministic for a given completed set. With quality comparison disabled
// the first completed success wins. If nothing succeeded, the highest
// confidence failure is the representative error; confidences on failures are
// typically zero, so in practice this is the first completed failure.
func pickRaceWinner(completed []engine.Result, selected []string, prefs Preferences) engine.Result {
	orderIndex := make(map[string]int, len(selected))
	for i, id := range selected {
		orderIndex[id] = i
	}

	var (
		winner      engine.Result
		winnerScore float64
		haveWinner  bool
	)
	for _, res := range completed {
		if !res.Success {
			continue
		}
		if !prefs.qualityComparisonEnabled() {
			return res
		}
		score := acceptanceScore(res)
		better := score > winnerScore ||
			(score == winnerScore && haveWinner && orderIndex[res.EngineID] < orderIndex[winner.EngineID])
		if !haveWinner || better {
			winner, winnerScore, haveWinner = res, score, true
		}
	}
	if haveWinner {
		return winner
	}

	var (
		worst    engine.Result
		haveAny  bool
		bestConf float64
	)
	for _, res := range completed {
		if !haveAny || res.Confidence > bestConf {
			worst, bestConf, haveAny = res, res.Confidence, true
		}
	}
	if haveAny {
		return worst
	}

	return engine.Failure(NoEngineID, "no engines completed within the deadline", prefs.MaxProcessingTime)
}
