// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/mindex/ai"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of embedding attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Namespace limits the run to one namespace. Empty means all.
	Namespace string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary describes a finished run.
type Summary struct {
	Records int
	Batches int
	Elapsed time.Duration
}

// Reembedder recomputes the vector of every stored memory.
type Reembedder struct {
	repo      storage.MemoryRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress receives human-readable progress, typically os.Stderr.
func NewReembedder(repo storage.MemoryRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewRecordIterator(repo, config.BatchSize).InNamespace(config.Namespace),
		logger:    slog.Default().With("component", "reembedder"),
	}, nil
}

// Run re-embeds every record in scope. A failed batch aborts the run; batches
// already written keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	total, err := r.repo.CountMemories(ctx)
	if err != nil {
		return summary, fmt.Errorf("count memories: %w", err)
	}
	if total == 0 {
		fmt.Fprintln(r.progress, "No memories to reembed")
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Reembedding up to %d memories (batch size %d)\n", total, r.iterator.batchSize)
	r.logger.Info("reembedding started", "total", total, "namespace", r.config.Namespace)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(records []*core.MemoryRecord) error {
		if err := r.processor.Process(ctx, records); err != nil {
			return fmt.Errorf("batch %d: %w", summary.Batches+1, err)
		}
		summary.Batches++
		summary.Records += len(records)
		tracker.Update(summary.Records)
		return nil
	})
	summary.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("reembedding failed", "records", summary.Records, "error", err)
		return summary, err
	}

	tracker.Finish()
	r.logger.Info("reembedding complete", "records", summary.Records, "batches", summary.Batches, "elapsed", summary.Elapsed)
	fmt.Fprintf(r.progress, "Reembedded %d memories in %d batches (%v)\n",
		summary.Records, summary.Batches, summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}
