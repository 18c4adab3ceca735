package matchers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func dobPerson(id string, dob time.Time, precisionDays *int) *models.Person {
	return &models.Person{ID: id, DOB: &dob, DOBPrecisionDays: precisionDays}
}

func intPtr(i int) *int { return &i }

func TestAgeSimilarity(t *testing.T) {
	base := time.Date(1960, 5, 5, 0, 0, 0, 0, time.UTC)

	t.Run("identical dates score one", func(t *testing.T) {
		m := NewAge()
		m.Prepare(dobPerson("a", base, nil))
		m.Prepare(dobPerson("b", base, nil))

		sim := m.Similarity("a", "b")
		require.NotNil(t, sim)
		assert.Equal(t, 1.0, *sim)
	})

	t.Run("strictly decreases as the gap grows", func(t *testing.T) {
		m := NewAge()
		m.Prepare(dobPerson("a", base, nil))
		m.Prepare(dobPerson("b", base.AddDate(0, 0, 1), nil))
		m.Prepare(dobPerson("c", base.AddDate(0, 0, 30), nil))
		m.Prepare(dobPerson("d", base.AddDate(0, 0, 365), nil))

		day := m.Similarity("a", "b")
		month := m.Similarity("a", "c")
		year := m.Similarity("a", "d")
		require.NotNil(t, day)
		require.NotNil(t, month)
		require.NotNil(t, year)
		assert.Greater(t, *day, *month)
		assert.Greater(t, *month, *year)
		assert.Greater(t, *year, 0.0)
	})

	t.Run("symmetric", func(t *testing.T) {
		m := NewAge()
		m.Prepare(dobPerson("a", base, nil))
		m.Prepare(dobPerson("b", base.AddDate(0, 0, 100), nil))

		ab := m.Similarity("a", "b")
		ba := m.Similarity("b", "a")
		require.NotNil(t, ab)
		require.NotNil(t, ba)
		assert.Equal(t, *ab, *ba)
	})

	t.Run("coarse precision softens the gap", func(t *testing.T) {
		m := NewAge()
		m.Prepare(dobPerson("a", base, nil))
		m.Prepare(dobPerson("exact", base.AddDate(0, 0, 100), nil))
		m.Prepare(dobPerson("yearish", base.AddDate(0, 0, 100), intPtr(365)))

		exact := m.Similarity("a", "exact")
		yearish := m.Similarity("a", "yearish")
		require.NotNil(t, exact)
		require.NotNil(t, yearish)
		assert.Greater(t, *yearish, *exact)
	})

	t.Run("missing date compares as nil", func(t *testing.T) {
		m := NewAge()
		m.Prepare(dobPerson("a", base, nil))
		m.Prepare(&models.Person{ID: "b"})

		assert.Nil(t, m.Similarity("a", "b"))
		assert.Nil(t, m.Similarity("b", "a"))
	})
}
