package matchers

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Sex compares the typed sex column: 1 when both sides are the same
// recorded sex, 0 when they differ, nil when either side is missing or not
// one of the recorded values.
type Sex struct {
	states map[string]string
}

func NewSex() *Sex {
	return &Sex{states: map[string]string{}}
}

func (m *Sex) Prepare(p *models.Person) {
	if p.Sex == nil {
		return
	}
	v := strings.ToUpper(strings.TrimSpace(*p.Sex))
	if v == "M" || v == "F" {
		m.states[p.ID] = v
	}
}

func (m *Sex) Similarity(aID, bID string) *float64 {
	a, okA := m.states[aID]
	b, okB := m.states[bID]
	if !okA || !okB {
		return nil
	}
	sim := 0.0
	if a == b {
		sim = 1.0
	}
	return &sim
}
