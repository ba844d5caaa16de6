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

	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

const (
	// DefaultBatchSize is the default number of records handed to each callback.
	DefaultBatchSize = 100
)

// RecordIterator streams stored memories in fixed-size batches.
type RecordIterator struct {
	repo      storage.MemoryRepository
	batchSize int
	namespace string
}

// NewRecordIterator creates an iterator over every record in repo.
// A non-positive batchSize falls back to DefaultBatchSize.
func NewRecordIterator(repo storage.MemoryRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{repo: repo, batchSize: batchSize}
}

// InNamespace restricts iteration to a single namespace. Empty means all.
func (it *RecordIterator) InNamespace(namespace string) *RecordIterator {
	it.namespace = namespace
	return it
}

// ForEach calls fn with consecutive batches until the repository is
// exhausted, fn fails or ctx is cancelled. The final batch may be short.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.MemoryRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]*core.MemoryRecord, 0, it.batchSize)
	err := it.repo.ScanMemories(ctx, func(record *core.MemoryRecord) error {
		if it.namespace != "" && record.Namespace != it.namespace {
			return nil
		}
		batch = append(batch, record)
		if len(batch) < it.batchSize {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.MemoryRecord, 0, it.batchSize)
		return ctx.Err()
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
