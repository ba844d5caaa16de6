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


package ingestion

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/poiesic/mindex/core"
)

// run drives job from PENDING to a terminal status. It is the only writer of job.
func (m *Manager) run(ctx context.Context, job *core.ProcessingJob, text string) {
	logger := m.logger.With("job", job.ID, "user", job.UserID)

	if err := m.setStatus(ctx, job, core.JobStatusChunking); err != nil {
		m.fail(ctx, job, err)
		return
	}
	chunks := m.chunker.Split(text)
	job.TotalChunks = len(chunks)
	if err := m.save(ctx, job); err != nil {
		m.fail(ctx, job, err)
		return
	}
	logger.Debug("document chunked", "chunks", len(chunks))

	namespace := core.Namespace(job.AgentID, job.UserID)
	for i, content := range chunks {
		if err := m.setStatus(ctx, job, core.JobStatusEmbedding); err != nil {
			m.fail(ctx, job, err)
			return
		}
		vector, err := m.embed(ctx, content)
		if err != nil {
			m.fail(ctx, job, stepError("embedding", i, len(chunks), err))
			return
		}

		if err := m.setStatus(ctx, job, core.JobStatusIndexing); err != nil {
			m.fail(ctx, job, err)
			return
		}
		record := &core.MemoryRecord{
			ID:         chunkMemoryID(job.ID, i),
			DocumentID: job.ID,
			Namespace:  namespace,
			Content:    content,
			Source:     job.Filename,
			UserID:     job.UserID,
			AgentID:    job.AgentID,
			ChunkIndex: i,
			Vector:     vector,
			CreatedAt:  m.now(),
		}
		if err := m.index(ctx, namespace, record); err != nil {
			m.fail(ctx, job, stepError("indexing", i, len(chunks), err))
			return
		}

		job.ProcessedChunks++
		if err := m.save(ctx, job); err != nil {
			m.fail(ctx, job, err)
			return
		}
		m.metrics.ChunksProcessed.Inc()
	}

	if err := m.setStatus(ctx, job, core.JobStatusCompleted); err != nil {
		m.fail(ctx, job, err)
		return
	}
	m.metrics.JobsFinished.WithLabelValues(string(core.JobStatusCompleted)).Inc()
	logger.Info("job completed", "chunks", job.TotalChunks)

	m.updateGraph(ctx, job, text)
}

// updateGraph is best effort: the memories are already stored.
func (m *Manager) updateGraph(ctx context.Context, job *core.ProcessingJob, text string) {
	if m.graph == nil {
		return
	}
	if _, err := m.graph.UpdateFromMemory(ctx, job.UserID, job.ID, text); err != nil {
		m.metrics.GraphUpdateFailures.Inc()
		m.logger.Warn("graph update failed", "job", job.ID, "user", job.UserID, "err", err)
	}
}

// setStatus validates and persists a status change.
func (m *Manager) setStatus(ctx context.Context, job *core.ProcessingJob, next core.JobStatus) error {
	if job.Status == next {
		return nil
	}
	if err := core.ValidateTransition(job, next); err != nil {
		return core.NewInternalError(err)
	}
	job.Status = next
	return m.save(ctx, job)
}

func (m *Manager) save(ctx context.Context, job *core.ProcessingJob) error {
	job.UpdatedAt = m.now()
	if err := m.jobs.UpdateJob(ctx, job); err != nil {
		return core.NewInternalError(fmt.Errorf("persist job %s: %w", job.ID, err))
	}
	return nil
}

// fail moves job to FAILED, keeping ProcessedChunks at the last indexed chunk.
func (m *Manager) fail(ctx context.Context, job *core.ProcessingJob, cause error) {
	job.Status = core.JobStatusFailed
	job.Error = core.PublicMessage(cause)
	job.UpdatedAt = m.now()
	if err := m.jobs.UpdateJob(ctx, job); err != nil {
		m.logger.Error("failed to record job failure", "job", job.ID, "err", err)
	}
	m.metrics.JobsFinished.WithLabelValues(string(core.JobStatusFailed)).Inc()
	m.logger.Error("job failed", "job", job.ID, "user", job.UserID,
		"processed", job.ProcessedChunks, "total", job.TotalChunks, "err", cause)
}

// chunkMemoryID derives a stable record id from the job id and chunk position.
func chunkMemoryID(jobID string, index int) string {
	space, err := uuid.Parse(jobID)
	if err != nil {
		space = uuid.NewSHA1(uuid.NameSpaceOID, []byte(jobID))
	}
	return uuid.NewSHA1(space, []byte(strconv.Itoa(index))).String()
}
