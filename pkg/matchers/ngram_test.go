package matchers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func nameGroup() models.FieldGroup {
	return models.FieldGroup{
		Label:   "name",
		Weight:  1,
		Fields:  []string{"name"},
		Kind:    models.GroupKindNGram,
		Enabled: true,
	}
}

func namePerson(id, name string) *models.Person {
	return &models.Person{ID: id, Data: map[string]any{"name": name}}
}

func blockAll(m *NGram, ids ...string) map[string]map[string]struct{} {
	likely := map[string]map[string]struct{}{}
	for _, id := range ids {
		likely[id] = map[string]struct{}{}
		m.Block(id, likely[id])
	}
	return likely
}

func TestNGramTokenize(t *testing.T) {
	t.Run("pads words and collects trigrams", func(t *testing.T) {
		grams := tokenize("Smith", 3)
		assert.Len(t, grams, 5)
		assert.Contains(t, grams, " SM")
		assert.Contains(t, grams, "TH ")
	})

	t.Run("repeated tokens add nothing", func(t *testing.T) {
		assert.Equal(t, tokenize("Smith", 3), tokenize("Smith Smith", 3))
	})

	t.Run("skips the unknown placeholder", func(t *testing.T) {
		assert.Empty(t, tokenize("UNKNOWN", 3))
		assert.Equal(t, tokenize("Smith", 3), tokenize("UNKNOWN Smith", 3))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, tokenize("smith", 3), tokenize("SMITH", 3))
	})

	t.Run("multibyte characters are single runes", func(t *testing.T) {
		grams := tokenize("José", 3)
		assert.Len(t, grams, 4)
		assert.Contains(t, grams, "OSÉ")
		assert.Contains(t, grams, "SÉ ")
	})
}

func TestNGramDice(t *testing.T) {
	t.Run("close names", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith"))
		m.Prepare(namePerson("b", "Smithe"))
		blockAll(m, "a", "b")

		sim := m.Similarity("a", "b")
		require.NotNil(t, sim)
		assert.InDelta(t, 0.73, *sim, 0.01)
	})

	t.Run("duplicated token scores as identical", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith"))
		m.Prepare(namePerson("b", "Smith Smith"))
		blockAll(m, "a", "b")

		sim := m.Similarity("a", "b")
		require.NotNil(t, sim)
		assert.Equal(t, 1.0, *sim)
	})

	t.Run("symmetric", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith John"))
		m.Prepare(namePerson("b", "Smithe John"))
		blockAll(m, "a", "b")

		ab := m.Similarity("a", "b")
		ba := m.Similarity("b", "a")
		require.NotNil(t, ab)
		require.NotNil(t, ba)
		assert.Equal(t, *ab, *ba)
	})

	t.Run("missing value compares as nil", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith"))
		m.Prepare(&models.Person{ID: "b", Data: map[string]any{}})
		blockAll(m, "a", "b")

		assert.Nil(t, m.Similarity("a", "b"))
		assert.Nil(t, m.Similarity("b", "a"))
	})

	t.Run("unrelated names score zero", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith"))
		m.Prepare(namePerson("b", "Wu"))
		blockAll(m, "a", "b")

		sim := m.Similarity("a", "b")
		require.NotNil(t, sim)
		assert.Equal(t, 0.0, *sim)
	})
}

func TestNGramBlocking(t *testing.T) {
	t.Run("similar pair lands in the later likely set", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith"))
		m.Prepare(namePerson("b", "Smithe"))
		m.Prepare(namePerson("c", "Jackson"))
		likely := blockAll(m, "a", "b", "c")

		assert.Empty(t, likely["a"])
		assert.Contains(t, likely["b"], "a")
		assert.Empty(t, likely["c"])
	})

	t.Run("memoized ratios survive FinishBlocking", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith"))
		m.Prepare(namePerson("b", "Smithe"))
		blockAll(m, "a", "b")
		m.FinishBlocking()

		sim := m.Similarity("a", "b")
		require.NotNil(t, sim)
		assert.InDelta(t, 0.73, *sim, 0.01)
	})

	t.Run("gram sets are released", func(t *testing.T) {
		m := NewNGram(nameGroup())
		m.Prepare(namePerson("a", "Smith"))
		blockAll(m, "a")
		m.FinishBlocking()

		assert.Nil(t, m.states["a"].grams)
		assert.Equal(t, 5, m.states["a"].count)
	})
}

func TestNGramNormalizer(t *testing.T) {
	normalizer := "nname"
	group := nameGroup()
	group.Normalizer = &normalizer

	m := NewNGram(group)
	m.Prepare(namePerson("a", "Smith Jr."))
	m.Prepare(namePerson("b", "Smith"))
	blockAll(m, "a", "b")

	sim := m.Similarity("a", "b")
	require.NotNil(t, sim)
	assert.Equal(t, 1.0, *sim)
}
