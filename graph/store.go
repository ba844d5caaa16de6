package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/mindex/concept"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

var (
	// ErrRepositoryRequired is returned when no GraphRepository is supplied.
	ErrRepositoryRequired = errors.New("graph repository is required")

	// ErrMemoryIDRequired is returned when an update has no memory id.
	ErrMemoryIDRequired = errors.New("memory id is required")
)

// Store is the knowledge graph store.
type Store struct {
	repo      storage.GraphRepository
	extractor *concept.Extractor
	logger    *slog.Logger
	now       func() time.Time

	locks sync.Map // userID -> *sync.Mutex
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithExtractor replaces the default concept extractor.
func WithExtractor(extractor *concept.Extractor) Option {
	return func(s *Store) error {
		if extractor == nil {
			return errors.New("extractor cannot be nil")
		}
		s.extractor = extractor
		return nil
	}
}

// NewStore creates a Store over repo.
func NewStore(repo storage.GraphRepository, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	s := &Store{
		repo:      repo,
		extractor: concept.NewExtractor(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "graph")
	return s, nil
}

func (s *Store) lock(userID string) func() {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// GetOrCreateConcept returns the user's node for label, creating it if needed.
func (s *Store) GetOrCreateConcept(ctx context.Context, userID, label string) (*core.Concept, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	return s.repo.GetOrCreateConcept(ctx, userID, label)
}

// MergeEdges folds edges into the user's graph. A new pair is stored with an
// occurrence count of 1; each further merge of the pair increments it by one
// and recomputes its strength. The incoming OccurrenceCount is ignored.
// memoryID is appended to the provenance of every merged edge.
//
// Large inputs are committed in several batches under the user's lock. If
// a batch fails, edges from earlier batches stay merged.
func (s *Store) MergeEdges(ctx context.Context, userID, memoryID string, edges []*core.RelationshipEdge) ([]*core.RelationshipEdge, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if len(edges) == 0 {
		return []*core.RelationshipEdge{}, nil
	}

	unlock := s.lock(userID)
	defer unlock()

	now := s.now()
	merge := func(existing, incoming *core.RelationshipEdge) *core.RelationshipEdge {
		if existing == nil {
			edge := *incoming
			edge.MemoryIDs = appendUnique(nil, incoming.MemoryIDs...)
			edge.MemoryIDs = appendUnique(edge.MemoryIDs, memoryID)
			edge.OccurrenceCount = 1
			edge.Strength = concept.Strength(edge.OccurrenceCount)
			edge.UpdatedAt = now
			return &edge
		}
		edge := *existing
		edge.MemoryIDs = appendUnique(slices.Clone(existing.MemoryIDs), incoming.MemoryIDs...)
		edge.MemoryIDs = appendUnique(edge.MemoryIDs, memoryID)
		edge.OccurrenceCount = existing.OccurrenceCount + 1
		edge.Strength = concept.Strength(edge.OccurrenceCount)
		edge.UpdatedAt = now
		return &edge
	}

	merged, err := s.repo.MergeEdges(ctx, userID, merge, edges...)
	if err != nil {
		return nil, fmt.Errorf("merge edges: %w", err)
	}
	s.logger.Debug("merged edges", "user", userID, "memory", memoryID, "count", len(merged))
	return merged, nil
}

// appendUnique appends each of ids not already in dst, skipping empty ids.
func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		if id != "" && !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

// Snapshot reads the user's graph. With a nil memoryIDs the whole graph is
// returned. Otherwise only edges whose provenance intersects memoryIDs are
// kept, along with the concepts they touch; an empty set yields an empty graph.
func (s *Store) Snapshot(ctx context.Context, userID string, memoryIDs []string) (*core.Snapshot, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}

	edges, err := s.repo.ListEdges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	if memoryIDs == nil {
		nodes, err := s.repo.ListConcepts(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list concepts: %w", err)
		}
		return &core.Snapshot{Nodes: nodes, Edges: edges}, nil
	}

	filter := make(map[string]struct{}, len(memoryIDs))
	for _, id := range memoryIDs {
		filter[id] = struct{}{}
	}

	kept := make([]*core.RelationshipEdge, 0)
	var touched []core.ID
	seen := make(map[core.ID]struct{})
	for _, edge := range edges {
		if !edge.HasProvenance(filter) {
			continue
		}
		kept = append(kept, edge)
		for _, id := range []core.ID{edge.SourceID, edge.TargetID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				touched = append(touched, id)
			}
		}
	}

	nodes, err := s.repo.GetConcepts(ctx, userID, touched...)
	if err != nil {
		return nil, fmt.Errorf("get concepts: %w", err)
	}
	return &core.Snapshot{Nodes: nodes, Edges: kept}, nil
}

// UpdateFromMemory extracts concepts from content, links every pair of them
// and merges the edges under memoryID. The returned snapshot holds every
// concept extracted from content and the edges memoryID contributed to.
//
// Concept nodes are created before any edge is merged. When the merge fails
// the nodes remain, since creating a concept is idempotent, and the error is
// returned; the edges of a failed batch are not written.
func (s *Store) UpdateFromMemory(ctx context.Context, userID, memoryID, content string) (*core.Snapshot, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if memoryID == "" {
		return nil, ErrMemoryIDRequired
	}

	labels := s.extractor.Extract(content)
	lookup := make(map[string]core.ID, len(labels))
	nodes := make([]*core.Concept, 0, len(labels))
	for _, label := range labels {
		c, err := s.repo.GetOrCreateConcept(ctx, userID, label)
		if err != nil {
			return nil, fmt.Errorf("concept %q: %w", label, err)
		}
		lookup[label] = c.Id
		nodes = append(nodes, c)
	}

	edges, err := concept.BuildRelationships(labels, lookup, userID, memoryID)
	if err != nil {
		return nil, err
	}
	merged, err := s.MergeEdges(ctx, userID, memoryID, edges)
	if err != nil {
		return nil, err
	}

	s.logger.Info("graph updated", "user", userID, "memory", memoryID, "concepts", len(nodes), "edges", len(merged))
	return &core.Snapshot{Nodes: nodes, Edges: merged}, nil
}
