package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// Close releases resources. JobRepository has no resources to release.
func (r *JobRepository) Close() error {
	return nil
}

// CreateJob stores a new job.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.ProcessingJob) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}
	key := makeJobKey(job.ID)
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: job %s", storage.ErrDuplicateKey, job.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Set(key, storage.MarshalJob(job))
	})
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.ProcessingJob, error) {
	var job *core.ProcessingJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			job, err = storage.UnmarshalJob(val)
			return err
		})
	}, false)
	return job, err
}

// UpdateJob replaces a stored job.
func (r *JobRepository) UpdateJob(ctx context.Context, job *core.ProcessingJob) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}
	key := makeJobKey(job.ID)
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return tx.Set(key, storage.MarshalJob(job))
	})
}
