package dupescan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/matchers"
	"github.com/Ramsey-B/fern/pkg/models"
)

func nameOnlyEngine(t *testing.T, names map[string]string) *matchers.Engine {
	t.Helper()
	engine, err := matchers.NewEngine(getTestLogger(), models.MatcherConfig{
		Cutoff: 0.55,
		Groups: []models.FieldGroup{
			{Label: "name", Weight: 1, Fields: []string{"name"}, Kind: models.GroupKindNGram, Enabled: true},
		},
	})
	require.NoError(t, err)
	for id, name := range names {
		engine.Add(&models.Person{ID: id, Data: map[string]any{"name": name}})
	}
	engine.Prescan(context.Background(), nil)
	return engine
}

func collect(gen PairGenerator) [][2]string {
	var out [][2]string
	gen(func(aID, bID string) bool {
		out = append(out, [2]string{aID, bID})
		return true
	})
	return out
}

func TestLikelyPairs(t *testing.T) {
	engine := nameOnlyEngine(t, map[string]string{
		"1": "Smith John",
		"2": "Smithe John",
		"3": "Jackson Henry",
	})

	total, gen := LikelyPairs(engine)
	got := collect(gen)

	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	low, high := models.CanonicalIDs(got[0][0], got[0][1])
	assert.Equal(t, "1", low)
	assert.Equal(t, "2", high)
}

func TestAllPairs(t *testing.T) {
	total, gen := AllPairs([]string{"a", "b", "c", "d"})
	got := collect(gen)

	assert.Equal(t, 6, total)
	assert.Len(t, got, 6)

	seen := map[string]struct{}{}
	for _, pair := range got {
		low, high := models.CanonicalIDs(pair[0], pair[1])
		seen[low+"/"+high] = struct{}{}
	}
	assert.Len(t, seen, 6)
}

func TestAllPairsStopsWhenYieldReturnsFalse(t *testing.T) {
	_, gen := AllPairs([]string{"a", "b", "c", "d"})

	count := 0
	gen(func(string, string) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}

func TestUpdatedPairs(t *testing.T) {
	names := map[string]string{
		"1": "Smith John",
		"2": "Smithe John",
		"3": "Jones Jane",
		"4": "Jones Jane",
	}

	t.Run("nothing updated yields nothing", func(t *testing.T) {
		engine := nameOnlyEngine(t, names)
		total, gen := UpdatedPairs(engine, map[string]struct{}{})
		assert.Equal(t, 0, total)
		assert.Empty(t, collect(gen))
	})

	t.Run("one side updated is enough", func(t *testing.T) {
		engine := nameOnlyEngine(t, names)
		total, gen := UpdatedPairs(engine, map[string]struct{}{"1": {}})
		got := collect(gen)

		assert.Equal(t, 1, total)
		require.Len(t, got, 1)
		low, high := models.CanonicalIDs(got[0][0], got[0][1])
		assert.Equal(t, "1", low)
		assert.Equal(t, "2", high)
	})

	t.Run("pairs outside the updated set stay untouched", func(t *testing.T) {
		engine := nameOnlyEngine(t, names)
		_, gen := UpdatedPairs(engine, map[string]struct{}{"3": {}})
		for _, pair := range collect(gen) {
			low, high := models.CanonicalIDs(pair[0], pair[1])
			assert.Equal(t, "3", low)
			assert.Equal(t, "4", high)
		}
	})
}
