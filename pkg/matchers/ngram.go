package matchers

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/extractor"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// memoThreshold is the Dice ratio above which a comparison is memoized and
// the pair becomes a likely candidate. Ratios at or below it compare as 0.
const memoThreshold = 0.5

// unknownToken is skipped during tokenization; imported data uses it as a
// placeholder and it would otherwise match every other unknown value.
const unknownToken = "UNKNOWN"

// NGram compares one text field group by the Dice coefficient of the two
// sides' n-gram sets. During the prescan it doubles as the blocking matcher:
// people sharing enough grams are memoized as likely candidates, then the
// gram sets and the index are dropped to keep the scan's footprint flat.
type NGram struct {
	group  models.FieldGroup
	level  int
	ex     *extractor.Extractor
	index  *Index
	states map[string]*ngramState
}

type ngramState struct {
	grams map[string]struct{} // nil after FinishBlocking
	count int
	sims  map[string]float64 // memoized ratios above memoThreshold
}

func NewNGram(group models.FieldGroup) *NGram {
	return &NGram{
		group:  group,
		level:  group.Level(),
		ex:     extractor.New(),
		index:  NewIndex(),
		states: map[string]*ngramState{},
	}
}

func (m *NGram) Prepare(p *models.Person) {
	grams := tokenize(m.text(p), m.level)
	m.states[p.ID] = &ngramState{
		grams: grams,
		count: len(grams),
		sims:  map[string]float64{},
	}
}

// text joins the group's configured fields out of the person data document,
// applying the group normalizer when one is set.
func (m *NGram) text(p *models.Person) string {
	var parts []string
	for _, field := range m.group.Fields {
		value, err := m.ex.ExtractString(p.Data, field)
		if err != nil || value == nil {
			continue
		}
		s := strings.TrimSpace(*value)
		if s == "" {
			continue
		}
		if m.group.Normalizer != nil {
			s = normalizers.Apply(s, *m.group.Normalizer)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// Block compares the person against everyone already indexed, memoizes the
// ratios above the threshold into both sides' states, and then indexes the
// person. Each pair is therefore evaluated exactly once, on its later side.
func (m *NGram) Block(id string, likely map[string]struct{}) {
	st := m.states[id]
	if st == nil || st.count == 0 {
		return
	}
	for candID, sharedCount := range m.index.Candidates(st.grams) {
		cand := m.states[candID]
		ratio := 2 * float64(sharedCount) / float64(st.count+cand.count)
		if ratio > memoThreshold {
			st.sims[candID] = ratio
			cand.sims[id] = ratio
			likely[candID] = struct{}{}
		}
	}
	m.index.Add(id, st.grams)
}

func (m *NGram) FinishBlocking() {
	for _, st := range m.states {
		st.grams = nil
	}
	m.index = nil
}

// Similarity returns the memoized Dice ratio, 0 for prepared pairs that were
// never memoized, and nil when either side produced no grams.
func (m *NGram) Similarity(aID, bID string) *float64 {
	a, b := m.states[aID], m.states[bID]
	if a == nil || b == nil || a.count == 0 || b.count == 0 {
		return nil
	}
	ratio := 0.0
	if v, ok := a.sims[bID]; ok {
		ratio = v
	}
	return &ratio
}

// tokenize uppercases the text, splits it on whitespace, skips the unknown
// placeholder, pads each word with a leading and trailing space, and
// collects every length-level rune window. The result is a set: repeated
// tokens add nothing.
func tokenize(text string, level int) map[string]struct{} {
	grams := map[string]struct{}{}
	for _, word := range strings.Fields(strings.ToUpper(text)) {
		if word == unknownToken {
			continue
		}
		padded := []rune(" " + word + " ")
		for i := 0; i+level <= len(padded); i++ {
			grams[string(padded[i:i+level])] = struct{}{}
		}
	}
	return grams
}
