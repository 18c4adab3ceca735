package matchers

// Index is the scan-scoped inverted index from n-gram to the ids of the
// people whose group text contains it. Each n-gram group owns one index; it
// lives only for the duration of the prescan.
type Index struct {
	postings map[string][]string
}

func NewIndex() *Index {
	return &Index{postings: map[string][]string{}}
}

// Add records every gram of a person's text. Grams are a set, so each
// posting list holds an id at most once.
func (ix *Index) Add(id string, grams map[string]struct{}) {
	for gram := range grams {
		ix.postings[gram] = append(ix.postings[gram], id)
	}
}

// Candidates returns, for every previously added person sharing at least one
// gram, the number of grams shared. Because grams are sets on both sides the
// count is the intersection size, which is all the Dice coefficient needs.
func (ix *Index) Candidates(grams map[string]struct{}) map[string]int {
	shared := map[string]int{}
	for gram := range grams {
		for _, id := range ix.postings[gram] {
			shared[id]++
		}
	}
	return shared
}
