package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

// GraphRepository implements storage.GraphRepository for BadgerDB.
type GraphRepository struct {
	backend *Backend
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) *GraphRepository {
	return &GraphRepository{backend: backend}
}

// Close releases resources. GraphRepository has no resources to release.
func (r *GraphRepository) Close() error {
	return nil
}

// GetOrCreateConcept returns the concept for (userID, label), creating it if needed.
// The label is normalized to lowercase.
func (r *GraphRepository) GetOrCreateConcept(ctx context.Context, userID, label string) (*core.Concept, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if label == "" {
		return nil, core.ErrEmptyLabel
	}

	id := core.ConceptID(userID, label)
	key := makeConceptKey(userID, id)

	var concept *core.Concept
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err == nil {
			return item.Value(func(val []byte) error {
				existing, err := storage.UnmarshalConcept(val)
				if err != nil {
					return err
				}
				if existing.Label != label {
					return fmt.Errorf("%w: %q and %q", storage.ErrConceptCollision, existing.Label, label)
				}
				concept = existing
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		concept = &core.Concept{
			Id:        id,
			Label:     label,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		}
		return tx.Set(key, storage.MarshalConcept(concept))
	})
	if err != nil {
		return nil, err
	}
	return concept, nil
}

// GetConcepts retrieves the user's concepts by ID, skipping missing ones.
func (r *GraphRepository) GetConcepts(ctx context.Context, userID string, ids ...core.ID) ([]*core.Concept, error) {
	concepts := make([]*core.Concept, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := tx.Get(makeConceptKey(userID, id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			if err := item.Value(func(val []byte) error {
				concept, err := storage.UnmarshalConcept(val)
				if err != nil {
					return err
				}
				concepts = append(concepts, concept)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return concepts, nil
}

// ListConcepts returns all concepts owned by userID, ordered by ID.
func (r *GraphRepository) ListConcepts(ctx context.Context, userID string) ([]*core.Concept, error) {
	concepts := []*core.Concept{}
	err := r.backend.scanPrefix(ctx, makeConceptPrefix(userID), func(_, val []byte) error {
		concept, err := storage.UnmarshalConcept(val)
		if err != nil {
			return err
		}
		concepts = append(concepts, concept)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return concepts, nil
}

// mergeBatchSize bounds the edges written per transaction. A document with
// n concepts yields n*(n-1)/2 edges, which overflows a single badger
// transaction at a few hundred concepts.
const mergeBatchSize = 1000

// MergeEdges merges edges into the stored graph in transactions of at most
// mergeBatchSize edges. On error, batches already committed stay merged.
// Each incoming edge is stamped with userID before merge is called.
func (r *GraphRepository) MergeEdges(ctx context.Context, userID string, merge storage.MergeFunc, edges ...*core.RelationshipEdge) ([]*core.RelationshipEdge, error) {
	if merge == nil {
		return nil, fmt.Errorf("%w: merge function is nil", storage.ErrInvalidQuery)
	}
	for _, edge := range edges {
		if edge == nil {
			return nil, fmt.Errorf("%w: edge is nil", core.ErrInvalidEdge)
		}
		edge.UserID = userID
		if err := core.ValidateEdge(edge); err != nil {
			return nil, err
		}
	}

	merged := make([]*core.RelationshipEdge, 0, len(edges))
	for start := 0; start < len(edges); start += mergeBatchSize {
		batch := edges[start:min(start+mergeBatchSize, len(edges))]
		results, err := r.mergeBatch(ctx, userID, merge, batch)
		if err != nil {
			return nil, fmt.Errorf("merge edges %d-%d of %d: %w", start, start+len(batch), len(edges), err)
		}
		merged = append(merged, results...)
	}
	return merged, nil
}

func (r *GraphRepository) mergeBatch(ctx context.Context, userID string, merge storage.MergeFunc, edges []*core.RelationshipEdge) ([]*core.RelationshipEdge, error) {
	var merged []*core.RelationshipEdge
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		// Reset on every attempt; Update replays fn after a conflict
		merged = make([]*core.RelationshipEdge, 0, len(edges))
		for _, incoming := range edges {
			key := makeEdgeKey(userID, incoming.SourceID, incoming.TargetID)

			var existing *core.RelationshipEdge
			item, err := tx.Get(key)
			switch {
			case err == nil:
				if err := item.Value(func(val []byte) error {
					existing, err = storage.UnmarshalEdge(val)
					return err
				}); err != nil {
					return err
				}
			case errors.Is(err, badger.ErrKeyNotFound):
			default:
				return err
			}

			result := merge(existing, incoming)
			if err := core.ValidateEdge(result); err != nil {
				return err
			}
			if err := tx.Set(key, storage.MarshalEdge(result)); err != nil {
				return err
			}
			merged = append(merged, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// ListEdges returns all edges owned by userID.
func (r *GraphRepository) ListEdges(ctx context.Context, userID string) ([]*core.RelationshipEdge, error) {
	edges := []*core.RelationshipEdge{}
	err := r.backend.scanPrefix(ctx, makeEdgePrefix(userID), func(_, val []byte) error {
		edge, err := storage.UnmarshalEdge(val)
		if err != nil {
			return err
		}
		edges = append(edges, edge)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}
