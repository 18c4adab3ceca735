package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalIDs(t *testing.T) {
	low, high := CanonicalIDs("b", "a")
	assert.Equal(t, "a", low)
	assert.Equal(t, "b", high)

	low, high = CanonicalIDs("a", "b")
	assert.Equal(t, "a", low)
	assert.Equal(t, "b", high)
}

func TestNewMatchPair(t *testing.T) {
	pair := NewMatchPair("7", "3", 0.8)

	assert.Equal(t, "3", pair.LowID)
	assert.Equal(t, "7", pair.HighID)
	assert.Equal(t, MatchPairStatusNew, pair.Status)
	require.NotNil(t, pair.Confidence)
	assert.Equal(t, 0.8, *pair.Confidence)

	// Both orders name the same pair.
	other := NewMatchPair("3", "7", 0.8)
	assert.Equal(t, pair.Key(), other.Key())
}

func TestMarkConflictForcesFullConfidence(t *testing.T) {
	pair := NewMatchPair("a", "b", 0.6)
	pair.MarkConflict()

	assert.Equal(t, MatchPairStatusConflict, pair.Status)
	require.NotNil(t, pair.Confidence)
	assert.Equal(t, 1.0, *pair.Confidence)
}

func TestMarkExcluded(t *testing.T) {
	pair := NewMatchPair("a", "b", 0.6)
	pair.MarkExcluded("same household, different people")

	assert.Equal(t, MatchPairStatusExcluded, pair.Status)
	require.NotNil(t, pair.ExcludeReason)
	assert.Equal(t, "same household, different people", *pair.ExcludeReason)
}
