package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

// MemoryRepository implements storage.MemoryRepository for BadgerDB.
// Similarity search is a brute-force scan of the namespace.
type MemoryRepository struct {
	backend *Backend
}

var _ storage.MemoryRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository(backend *Backend) *MemoryRepository {
	return &MemoryRepository{backend: backend}
}

// Close releases resources. MemoryRepository has no resources to release.
func (r *MemoryRepository) Close() error {
	return nil
}

// Upsert writes records under namespace in a single transaction.
func (r *MemoryRepository) Upsert(ctx context.Context, namespace string, records ...*core.MemoryRecord) error {
	for _, record := range records {
		if record == nil {
			return fmt.Errorf("%w: record is nil", core.ErrInvalidMemoryRecord)
		}
		if record.Namespace == "" {
			record.Namespace = namespace
		}
		if record.Namespace != namespace {
			return fmt.Errorf("%w: %q written to %q", storage.ErrNamespaceMismatch, record.Namespace, namespace)
		}
		if err := core.ValidateMemoryRecord(record); err != nil {
			return err
		}
	}

	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		for _, record := range records {
			if err := tx.Set(makeMemoryKey(namespace, record.ID), storage.MarshalMemoryRecord(record)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns the records in namespace most similar to vector.
func (r *MemoryRepository) Query(ctx context.Context, namespace string, vector []float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.SearchResult
	err := r.backend.scanPrefix(ctx, makeMemoryPrefix(namespace), func(_, val []byte) error {
		record, err := storage.UnmarshalMemoryRecord(val)
		if err != nil {
			return err
		}
		// Skip records without embeddings
		if len(record.Vector) == 0 {
			return nil
		}
		results = append(results, &core.SearchResult{
			Record: record,
			Score:  cosineSimilarity(vector, record.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetMemory retrieves a single record.
func (r *MemoryRepository) GetMemory(ctx context.Context, namespace, id string) (*core.MemoryRecord, error) {
	var record *core.MemoryRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeMemoryKey(namespace, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = storage.UnmarshalMemoryRecord(val)
			return err
		})
	}, false)
	return record, err
}

// ScanMemories calls fn for every stored record.
func (r *MemoryRepository) ScanMemories(ctx context.Context, fn func(*core.MemoryRecord) error) error {
	return r.backend.scanPrefix(ctx, []byte(memoryPrefix+":"), func(_, val []byte) error {
		record, err := storage.UnmarshalMemoryRecord(val)
		if err != nil {
			return err
		}
		return fn(record)
	})
}

// CountMemories returns the number of stored records.
func (r *MemoryRepository) CountMemories(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(memoryPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return ctx.Err()
	}, false)
	return count, err
}
