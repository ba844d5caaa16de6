package concept

import (
	"errors"
	"fmt"

	"github.com/poiesic/mindex/core"
)

// ErrConceptNotResolved is returned when a concept has no node id in the lookup.
var ErrConceptNotResolved = errors.New("concept not resolved")

// Strength maps an occurrence count onto [0, 1].
//
// strength(n) = 1 - 0.75/n, so strength(1) is exactly 0.25, every additional
// occurrence strictly increases it, and it approaches but never exceeds 1.
func Strength(occurrences int) float64 {
	if occurrences < 1 {
		return 0
	}
	return 1 - 0.75/float64(occurrences)
}

// BuildRelationships emits one edge per unordered pair of distinct concepts.
// Duplicates in concepts are ignored, so n unique concepts yield n*(n-1)/2 edges.
// Every concept must have an entry in lookup.
func BuildRelationships(concepts []string, lookup map[string]core.ID, userID, memoryID string) ([]*core.RelationshipEdge, error) {
	unique := make([]string, 0, len(concepts))
	seen := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		if _, dup := seen[c]; dup {
			continue
		}
		if _, ok := lookup[c]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrConceptNotResolved, c)
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}

	n := len(unique)
	edges := make([]*core.RelationshipEdge, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, &core.RelationshipEdge{
				SourceID:        lookup[unique[i]],
				TargetID:        lookup[unique[j]],
				UserID:          userID,
				MemoryIDs:       []string{memoryID},
				OccurrenceCount: 1,
				Strength:        Strength(1),
			})
		}
	}
	return edges, nil
}
