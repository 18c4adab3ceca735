package dupescan

import "github.com/Ramsey-B/fern/pkg/matchers"

// PairGenerator enumerates the candidate pairs a scan compares. Yield
// returning false stops the enumeration.
type PairGenerator func(yield func(aID, bID string) bool)

// LikelyPairs enumerates the pairs the blocking prescan flagged. Each
// candidate pair lives in exactly one likely set (the later person's), so no
// dedup is needed.
func LikelyPairs(engine *matchers.Engine) (int, PairGenerator) {
	total := engine.LikelyPairCount()
	gen := func(yield func(aID, bID string) bool) {
		for _, id := range engine.People() {
			for candidate := range engine.Likely(id) {
				if !yield(candidate, id) {
					return
				}
			}
		}
	}
	return total, gen
}

// AllPairs enumerates every distinct pair, ignoring the blocking index. Used
// as a diagnostic to measure what blocking misses; quadratic in population.
func AllPairs(ids []string) (int, PairGenerator) {
	total := len(ids) * (len(ids) - 1) / 2
	gen := func(yield func(aID, bID string) bool) {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if !yield(ids[i], ids[j]) {
					return
				}
			}
		}
	}
	return total, gen
}

// UpdatedPairs enumerates the likely pairs with at least one side in the
// updated set, which is all an incremental scan needs to rescore.
func UpdatedPairs(engine *matchers.Engine, updated map[string]struct{}) (int, PairGenerator) {
	total := 0
	walk := func(yield func(aID, bID string) bool) {
		for _, id := range engine.People() {
			_, idUpdated := updated[id]
			for candidate := range engine.Likely(id) {
				if !idUpdated {
					if _, ok := updated[candidate]; !ok {
						continue
					}
				}
				if !yield(candidate, id) {
					return
				}
			}
		}
	}
	walk(func(string, string) bool { total++; return true })
	return total, walk
}
