package matchers

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Age compares dates of birth with a quadratic decay: identical dates score
// 1 and the score falls off as the gap grows, softened by the coarser of the
// two recorded precisions so a year-precision date isn't punished for a
// few months of drift. Missing dates compare as nil.
type Age struct {
	states map[string]ageState
}

type ageState struct {
	dob       time.Time
	precision int // days
}

func NewAge() *Age {
	return &Age{states: map[string]ageState{}}
}

func (m *Age) Prepare(p *models.Person) {
	if p.DOB == nil {
		return
	}
	precision := 1
	if p.DOBPrecisionDays != nil && *p.DOBPrecisionDays > 1 {
		precision = *p.DOBPrecisionDays
	}
	m.states[p.ID] = ageState{dob: *p.DOB, precision: precision}
}

func (m *Age) Similarity(aID, bID string) *float64 {
	a, okA := m.states[aID]
	b, okB := m.states[bID]
	if !okA || !okB {
		return nil
	}
	precision := a.precision
	if b.precision > precision {
		precision = b.precision
	}
	deltaDays := a.dob.Sub(b.dob).Hours() / 24
	if deltaDays < 0 {
		deltaDays = -deltaDays
	}
	x := deltaDays/float64(precision) + 1
	sim := 1 / (x * x)
	return &sim
}
