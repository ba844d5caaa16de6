// Package redis provides a Redis-backed storage.JobRepository so job status
// can be shared between processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

const keyPrefix = "mindex:job:"

// JobRepository stores mus-encoded jobs under mindex:job:<id>.
type JobRepository struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository connects to addr and pings it.
// A positive ttl expires job records that long after their last write.
func NewJobRepository(ctx context.Context, addr string, ttl time.Duration) (*JobRepository, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &JobRepository{
		rdb:    rdb,
		ttl:    ttl,
		logger: slog.Default().With("component", "redis"),
	}, nil
}

func jobKey(id string) string {
	return keyPrefix + id
}

// CreateJob stores a new job.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.ProcessingJob) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, jobKey(job.ID), storage.MarshalJob(job), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: job %s", storage.ErrDuplicateKey, job.ID)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.ProcessingJob, error) {
	data, err := r.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return storage.UnmarshalJob(data)
}

// UpdateJob replaces a stored job.
func (r *JobRepository) UpdateJob(ctx context.Context, job *core.ProcessingJob) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}
	ok, err := r.rdb.SetXX(ctx, jobKey(job.ID), storage.MarshalJob(job), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

// Close closes the client.
func (r *JobRepository) Close() error {
	return r.rdb.Close()
}
