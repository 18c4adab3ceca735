// Package matchers implements the field similarity model for duplicate
// person detection: per-group matchers prepared once per scan, an n-gram
// blocking index, and the weighted composite score.
package matchers

import (
	"github.com/Ramsey-B/fern/pkg/models"
)

// Matcher computes similarity for one configured field group. A matcher is
// scoped to a single scan: it ingests every person once during the prepare
// pass and answers comparisons afterwards.
type Matcher interface {
	// Prepare ingests a person and stores the per-person state the matcher
	// needs for later comparisons.
	Prepare(p *models.Person)
	// Similarity returns the similarity of two prepared people in [0, 1],
	// or nil when either side lacks the data to compare.
	Similarity(aID, bID string) *float64
}

// Blocker is implemented by matchers that contribute candidate pairs during
// the prescan. Block is called once per person, in load order, after every
// matcher has prepared that person.
type Blocker interface {
	Block(id string, likely map[string]struct{})
	// FinishBlocking releases the blocking structures. Memoized similarity
	// ratios survive; raw gram sets do not.
	FinishBlocking()
}

func newMatcher(group models.FieldGroup) Matcher {
	switch group.ResolveKind() {
	case models.GroupKindSex:
		return NewSex()
	case models.GroupKindAge:
		return NewAge()
	default:
		return NewNGram(group)
	}
}
