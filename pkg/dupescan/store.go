package dupescan

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	// cutoffStep is how far the cutoff rises each time the store overflows.
	cutoffStep = 0.05
	// cutoffCeiling is the highest the adaptive cutoff will go. Beyond it
	// the store accepts the overflow rather than discard near-certain pairs.
	cutoffCeiling = 0.9
)

// Store is the in-memory working set of match pairs for one scan. It keeps
// the pair count bounded by raising its confidence cutoff and evicting NEW
// pairs that fall under it. Reviewed pairs are sticky: EXCLUDED and CONFLICT
// entries are never evicted and never downgraded by a scan.
type Store struct {
	cutoff     float64
	maxMatches int
	pairs      map[string]*models.MatchPair
	dirty      map[string]struct{}
	newCount   int
}

func NewStore(cutoff float64, maxMatches int) *Store {
	return &Store{
		cutoff:     cutoff,
		maxMatches: maxMatches,
		pairs:      map[string]*models.MatchPair{},
		dirty:      map[string]struct{}{},
	}
}

// Seed loads previously stored pairs without cutoff filtering or dirty
// tracking. Seeded NEW pairs still count against the bound.
func (s *Store) Seed(pairs []models.MatchPair) {
	for i := range pairs {
		pair := pairs[i]
		s.pairs[pair.Key()] = &pair
		if pair.Status == models.MatchPairStatusNew {
			s.newCount++
		}
	}
	s.raiseCutoff()
}

// Add records a scored comparison. Only pairs over the current cutoff are
// kept. An existing NEW pair gets its confidence refreshed; EXCLUDED and
// CONFLICT pairs are left untouched. Returns true when the store changed.
func (s *Store) Add(aID, bID string, confidence float64) bool {
	if confidence <= s.cutoff {
		return false
	}

	pair := models.NewMatchPair(aID, bID, confidence)
	key := pair.Key()

	if existing, ok := s.pairs[key]; ok {
		if existing.Status != models.MatchPairStatusNew {
			return false
		}
		existing.Confidence = pair.Confidence
		existing.TimeChecked = pair.TimeChecked
		s.dirty[key] = struct{}{}
		return true
	}

	s.pairs[key] = &pair
	s.dirty[key] = struct{}{}
	s.newCount++
	s.raiseCutoff()
	return true
}

// raiseCutoff steps the cutoff up until the NEW pair count fits the bound or
// the ceiling is reached, evicting NEW pairs that fall below it.
func (s *Store) raiseCutoff() {
	for s.newCount > s.maxMatches && s.cutoff < cutoffCeiling {
		s.cutoff += cutoffStep
		if s.cutoff > cutoffCeiling {
			s.cutoff = cutoffCeiling
		}
		for key, pair := range s.pairs {
			if pair.Status != models.MatchPairStatusNew {
				continue
			}
			if pair.ConfidenceValue() < s.cutoff {
				delete(s.pairs, key)
				delete(s.dirty, key)
				s.newCount--
			}
		}
	}
}

// Cutoff returns the current, possibly raised, confidence cutoff.
func (s *Store) Cutoff() float64 {
	return s.cutoff
}

// NewCount returns how many NEW pairs the store holds.
func (s *Store) NewCount() int {
	return s.newCount
}

// Len returns the total number of pairs across all statuses.
func (s *Store) Len() int {
	return len(s.pairs)
}

// Get looks a pair up by its two ids in either order.
func (s *Store) Get(aID, bID string) (*models.MatchPair, bool) {
	low, high := models.CanonicalIDs(aID, bID)
	probe := models.MatchPair{LowID: low, HighID: high}
	pair, ok := s.pairs[probe.Key()]
	return pair, ok
}

// Pairs returns every pair ordered by confidence descending, ties broken by
// ascending canonical ids so the ordering is stable.
func (s *Store) Pairs() []models.MatchPair {
	return sortPairs(s.pairs, func(*models.MatchPair) bool { return true })
}

// NonConflictPairs returns the pairs a full-scan save writes back. CONFLICT
// rows are owned by the import pipeline and survive saves untouched.
func (s *Store) NonConflictPairs() []models.MatchPair {
	return sortPairs(s.pairs, func(p *models.MatchPair) bool {
		return p.Status != models.MatchPairStatusConflict
	})
}

// DirtyPairs returns the pairs created or refreshed since the store was
// seeded, which is all an incremental save writes.
func (s *Store) DirtyPairs() []models.MatchPair {
	return sortPairs(s.pairs, func(p *models.MatchPair) bool {
		_, ok := s.dirty[p.Key()]
		return ok
	})
}

func sortPairs(pairs map[string]*models.MatchPair, keep func(*models.MatchPair) bool) []models.MatchPair {
	out := make([]models.MatchPair, 0, len(pairs))
	for _, pair := range pairs {
		if keep(pair) {
			out = append(out, *pair)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].ConfidenceValue(), out[j].ConfidenceValue()
		if ci != cj {
			return ci > cj
		}
		if out[i].LowID != out[j].LowID {
			return out[i].LowID < out[j].LowID
		}
		return out[i].HighID < out[j].HighID
	})
	return out
}
