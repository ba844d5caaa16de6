package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/mindex/core"
)

// embed calls the embedder for one chunk under the step timeout.
func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	stepCtx, cancel := context.WithTimeout(ctx, m.stepTimeout)
	defer cancel()

	start := time.Now()
	vector, err := m.embedder.EmbedText(stepCtx, text)
	m.metrics.StepDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, errors.New("embedder returned an empty vector")
	}
	return vector, nil
}

// index upserts one record under the step timeout.
func (m *Manager) index(ctx context.Context, namespace string, record *core.MemoryRecord) error {
	stepCtx, cancel := context.WithTimeout(ctx, m.stepTimeout)
	defer cancel()

	start := time.Now()
	err := m.vectors.Upsert(stepCtx, namespace, record)
	m.metrics.StepDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	return err
}

// stepError classifies a failed embedder or vector store call as upstream.
func stepError(step string, index, total int, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewUpstreamError(fmt.Sprintf("%s chunk %d of %d timed out", step, index+1, total), err)
	}
	return core.NewUpstreamError(fmt.Sprintf("%s chunk %d of %d failed", step, index+1, total), err)
}
