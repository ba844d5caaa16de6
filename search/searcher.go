package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/mindex/ai"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

// DefaultLimit is used when a search asks for no particular number of results.
const DefaultLimit = 10

// Snapshotter reads a user's knowledge graph filtered to source memories.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID string, memoryIDs []string) (*core.Snapshot, error)
}

// GraphResult is a search result set with its related knowledge graph.
type GraphResult struct {
	Results []*core.SearchResult
	Graph   *core.Snapshot
}

// Searcher provides semantic retrieval over memory records.
type Searcher struct {
	vectors  storage.VectorStore
	embedder ai.Embedder
	graph    Snapshotter
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithGraph enables SearchWithGraph.
func WithGraph(graph Snapshotter) Option {
	return func(s *Searcher) error {
		s.graph = graph
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(vectors storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		vectors:  vectors,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")
	return s, nil
}

// Search returns up to limit memories in the (agentID, userID) namespace
// ranked by similarity to query.
func (s *Searcher) Search(ctx context.Context, query, userID, agentID string, limit int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, userID, agentID, limit, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query, userID, agentID string, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	results, err := s.search(ctx, query, userID, agentID, limit, monitor)
	if err != nil {
		return nil, err
	}
	monitor.Finish(results)
	return results, nil
}

func (s *Searcher) search(ctx context.Context, query, userID, agentID string, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if query == "" {
		return nil, core.NewValidationError("query is required")
	}
	if userID == "" {
		return nil, core.NewValidationError("userId is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	monitor.Start(query)

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, core.NewUpstreamError("embedding query failed", err)
	}
	monitor.AfterEmbedding(vector)

	namespace := core.Namespace(agentID, userID)
	results, err := s.vectors.Query(ctx, namespace, vector, limit)
	if err != nil {
		s.logger.Error("error querying vector store", "namespace", namespace, "err", err)
		return nil, core.NewUpstreamError("vector query failed", err)
	}
	if results == nil {
		results = []*core.SearchResult{}
	}
	monitor.AfterVectorQuery(results)

	s.logger.Debug("search complete", "namespace", namespace, "results", len(results))
	return results, nil
}

// SearchWithGraph runs Search and attaches the user's graph restricted to
// the returned memories and the documents they came from.
func (s *Searcher) SearchWithGraph(ctx context.Context, query, userID, agentID string, limit int) (*GraphResult, error) {
	return s.SearchWithGraphMonitor(ctx, query, userID, agentID, limit, nil)
}

// SearchWithGraphMonitor is SearchWithGraph with callbacks at each stage.
func (s *Searcher) SearchWithGraphMonitor(ctx context.Context, query, userID, agentID string, limit int, monitor SearchMonitor) (*GraphResult, error) {
	if s.graph == nil {
		return nil, ErrGraphRequired
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	results, err := s.search(ctx, query, userID, agentID, limit, monitor)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.graph.Snapshot(ctx, userID, provenanceIDs(results))
	if err != nil {
		s.logger.Error("error reading knowledge graph", "user", userID, "err", err)
		return nil, core.NewInternalError(err)
	}
	monitor.AfterGraphSnapshot(snapshot)
	monitor.Finish(results)

	return &GraphResult{Results: results, Graph: snapshot}, nil
}

// provenanceIDs collects the memory and document ids of results. The result
// is never nil, so an empty result set selects an empty graph.
func provenanceIDs(results []*core.SearchResult) []string {
	ids := make([]string, 0, 2*len(results))
	seen := make(map[string]struct{}, 2*len(results))
	for _, r := range results {
		for _, id := range []string{r.Record.ID, r.Record.DocumentID} {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
