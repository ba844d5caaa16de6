package storage

import (
	"context"

	"github.com/poiesic/mindex/core"
)

// JobRepository persists ProcessingJobs.
type JobRepository interface {
	// CreateJob stores a new job.
	// Returns ErrDuplicateKey if a job with the same ID exists.
	CreateJob(ctx context.Context, job *core.ProcessingJob) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.ProcessingJob, error)

	// UpdateJob replaces a stored job.
	// Returns ErrNotFound if the job doesn't exist.
	UpdateJob(ctx context.Context, job *core.ProcessingJob) error

	// Close releases resources held by the repository.
	Close() error
}

// VectorStore indexes embedded memories by namespace.
type VectorStore interface {
	// Upsert writes records under namespace, replacing any with the same ID.
	// Records whose Namespace is empty are assigned namespace; a different
	// non-empty Namespace is rejected with ErrNamespaceMismatch.
	Upsert(ctx context.Context, namespace string, records ...*core.MemoryRecord) error

	// Query returns up to limit records in namespace ordered by similarity to vector,
	// highest first.
	Query(ctx context.Context, namespace string, vector []float32, limit int) ([]*core.SearchResult, error)
}

// MemoryRepository is a VectorStore that also supports point reads and scans.
type MemoryRepository interface {
	VectorStore

	// GetMemory retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist.
	GetMemory(ctx context.Context, namespace, id string) (*core.MemoryRecord, error)

	// ScanMemories calls fn for every stored record. Iteration stops at the first error.
	ScanMemories(ctx context.Context, fn func(*core.MemoryRecord) error) error

	// CountMemories returns the number of stored records across all namespaces.
	CountMemories(ctx context.Context) (int, error)

	// Close releases resources held by the repository.
	Close() error
}

// MergeFunc combines an incoming edge with the stored edge for the same
// unordered concept pair. existing is nil when the pair has not been seen.
// The returned edge is what gets stored.
type MergeFunc func(existing, incoming *core.RelationshipEdge) *core.RelationshipEdge

// GraphRepository stores per-user concept nodes and relationship edges.
type GraphRepository interface {
	// GetOrCreateConcept returns the concept for (userID, label), creating it if needed.
	// Safe for concurrent use.
	GetOrCreateConcept(ctx context.Context, userID, label string) (*core.Concept, error)

	// GetConcepts retrieves the user's concepts by ID.
	// Returns only the concepts that exist.
	GetConcepts(ctx context.Context, userID string, ids ...core.ID) ([]*core.Concept, error)

	// ListConcepts returns all concepts owned by userID.
	ListConcepts(ctx context.Context, userID string) ([]*core.Concept, error)

	// MergeEdges applies merge to each incoming edge and its stored counterpart
	// and returns the stored results in input order. Each edge is read and
	// written atomically. Implementations may commit large inputs in several
	// batches; invalid edges are rejected before anything is written.
	MergeEdges(ctx context.Context, userID string, merge MergeFunc, edges ...*core.RelationshipEdge) ([]*core.RelationshipEdge, error)

	// ListEdges returns all edges owned by userID.
	ListEdges(ctx context.Context, userID string) ([]*core.RelationshipEdge, error)

	// Close releases resources held by the repository.
	Close() error
}
