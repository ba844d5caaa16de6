package concept

import (
	"testing"

	"github.com/poiesic/mindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrength(t *testing.T) {
	assert.Equal(t, 0.25, Strength(1))
	assert.Equal(t, 0.0, Strength(0))
	assert.Equal(t, 0.0, Strength(-3))

	for n := 1; n < 10; n++ {
		assert.Greater(t, Strength(n+1), Strength(n), "strength must increase from %d to %d", n, n+1)
	}
	for _, n := range []int{1, 2, 10, 100, 1_000_000} {
		s := Strength(n)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func lookupFor(userID string, labels ...string) map[string]core.ID {
	lookup := make(map[string]core.ID, len(labels))
	for _, l := range labels {
		lookup[l] = core.ConceptID(userID, l)
	}
	return lookup
}

func TestBuildRelationships(t *testing.T) {
	lookup := lookupFor("user-1", "alpha", "beta", "gamma")

	edges, err := BuildRelationships([]string{"alpha", "beta", "gamma"}, lookup, "user-1", "memory-1")
	require.NoError(t, err)
	require.Len(t, edges, 3)

	pairs := make(map[[2]core.ID]bool)
	for _, e := range edges {
		assert.Equal(t, "user-1", e.UserID)
		assert.Equal(t, []string{"memory-1"}, e.MemoryIDs)
		assert.Equal(t, 1, e.OccurrenceCount)
		assert.Equal(t, 0.25, e.Strength)
		assert.NotEqual(t, e.SourceID, e.TargetID)
		lo, hi := e.PairKey()
		pairs[[2]core.ID{lo, hi}] = true
	}
	assert.Len(t, pairs, 3, "pairs must be unique")
}

func TestBuildRelationships_PairCounts(t *testing.T) {
	labels := []string{"a1", "b2", "c3", "d4", "e5", "f6"}
	lookup := lookupFor("u", labels...)

	for n := 0; n <= len(labels); n++ {
		edges, err := BuildRelationships(labels[:n], lookup, "u", "m")
		require.NoError(t, err)
		assert.Len(t, edges, n*(n-1)/2, "n=%d", n)
	}
}

func TestBuildRelationships_DeduplicatesInput(t *testing.T) {
	lookup := lookupFor("u", "alpha", "beta")

	edges, err := BuildRelationships([]string{"alpha", "beta", "alpha", "beta"}, lookup, "u", "m")
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestBuildRelationships_MissingLookup(t *testing.T) {
	lookup := lookupFor("u", "alpha")

	_, err := BuildRelationships([]string{"alpha", "beta"}, lookup, "u", "m")
	assert.ErrorIs(t, err, ErrConceptNotResolved)
}
