/**
 * Ordering Policy - Turn preferences + history into a concrete try-order
 *
 * Caller-declared preferred engines come first, then declared fallbacks, then
 * every remaining available engine sorted by descending historical score with
 * registration order as the deterministic tie-break. Duplicates keep their
 * first occurrence; unavailable engines never appear.
 */

package orchestrator

import "sort"

// orderEngines computes the try-order for one request. available must be in
// registration order (Registry.Available produces exactly that).
func orderEngines(prefs Preferences, available []string, tracker *MetricsTracker) []string {
	availableSet := make(map[string]bool, len(available))
	for _, id := range available {
		availableSet[id] = true
	}

	order := make([]string, 0, len(available))
	seen := make(map[string]bool, len(available))

	appendIfUsable := func(id string) {
		if availableSet[id] && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}

	for _, id := range prefs.PreferredEngines {
		appendIfUsable(id)
	}
	for _, id := range prefs.FallbackEngines {
		appendIfUsable(id)
	}

	// Remaining engines ranked by history. Stable sort keeps registration
	// order for equal scores.
	remaining := make([]string, 0, len(available))
	for _, id := range available {
		if !seen[id] {
			remaining = append(remaining, id)
		}
	}
	scores := make(map[string]float64, len(remaining))
	for _, id := range remaining {
		scores[id] = tracker.Score(id)
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		return scores[remaining[i]] > scores[remaining[j]]
	})

	return append(order, remaining...)
}
