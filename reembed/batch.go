package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/mindex/ai"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

// BatchProcessor re-embeds a batch of memories and writes them back.
type BatchProcessor struct {
	repo           storage.VectorStore
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries bounds the embedding attempts per batch; retryBaseDelay is the
// first backoff interval.
func NewBatchProcessor(repo storage.VectorStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the content of every record, replaces its vector with the
// normalized embedding and upserts the batch one namespace at a time.
// Records are mutated in place.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.MemoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Content
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(texts), len(vectors))
		}
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(records), err)
	}

	for i, record := range records {
		record.Vector = NormalizeVector(vectors[i])
	}

	namespaces, groups := groupByNamespace(records)
	for _, ns := range namespaces {
		if err := bp.repo.Upsert(ctx, ns, groups[ns]...); err != nil {
			return fmt.Errorf("upsert namespace %q: %w", ns, err)
		}
	}
	return nil
}

// groupByNamespace keeps first-seen namespace order so writes are deterministic.
func groupByNamespace(records []*core.MemoryRecord) ([]string, map[string][]*core.MemoryRecord) {
	var order []string
	groups := make(map[string][]*core.MemoryRecord)
	for _, record := range records {
		if _, ok := groups[record.Namespace]; !ok {
			order = append(order, record.Namespace)
		}
		groups[record.Namespace] = append(groups[record.Namespace], record)
	}
	return order, groups
}
