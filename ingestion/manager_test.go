package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/mindex/ai/mock"
	"github.com/poiesic/mindex/chunk"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/graph"
	"github.com/poiesic/mindex/storage/badger"
)

type fixture struct {
	repos    *badger.Repositories
	embedder *mock.MockEmbedder
	manager  *Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	manager, err := NewManager(repos.Jobs, repos.Memories, embedder, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		manager.Wait()
		manager.Release()
		repos.Close()
	})
	return &fixture{repos: repos, embedder: embedder, manager: manager}
}

func mustChunker(t *testing.T, maxChars, overlap int) *chunk.Chunker {
	t.Helper()
	c, err := chunk.New(maxChars, overlap)
	require.NoError(t, err)
	return c
}

// document builds roughly n characters of sentence-structured text.
func document(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		b.WriteString("Memory systems index documents for semantic search. ")
	}
	return b.String()[:n]
}

type failingGraph struct{ calls atomic.Int32 }

func (g *failingGraph) UpdateFromMemory(ctx context.Context, userID, memoryID, content string) (*core.Snapshot, error) {
	g.calls.Add(1)
	return nil, errors.New("graph store unavailable")
}

type failingVectorStore struct{}

func (failingVectorStore) Upsert(ctx context.Context, namespace string, records ...*core.MemoryRecord) error {
	return errors.New("vector store unavailable")
}

func (failingVectorStore) Query(ctx context.Context, namespace string, vector []float32, limit int) ([]*core.SearchResult, error) {
	return nil, nil
}

func TestNewManager_RequiredDependencies(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	embedder := mock.NewMockEmbedder()

	_, err = NewManager(nil, repos.Memories, embedder)
	assert.ErrorIs(t, err, ErrJobRepositoryRequired)
	_, err = NewManager(repos.Jobs, nil, embedder)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)
	_, err = NewManager(repos.Jobs, repos.Memories, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewManager(repos.Jobs, repos.Memories, embedder, WithStepTimeout(0))
	assert.Error(t, err)
	_, err = NewManager(repos.Jobs, repos.Memories, embedder, WithChunker(nil))
	assert.Error(t, err)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Submit(ctx, "some text", "a.txt", "", "agent-1")
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = f.manager.Submit(ctx, " \n\t ", "a.txt", "user-1", "agent-1")
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestGetStatus_UnknownJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.GetStatus(context.Background(), "missing")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestSubmit_CompletesMultiChunkDocument(t *testing.T) {
	chunker := mustChunker(t, 500, 50)
	f := newFixture(t, WithChunker(chunker))
	ctx := context.Background()

	doc := document(1200)
	expected := chunker.Split(doc)
	require.Greater(t, len(expected), 1)

	jobID, err := f.manager.Submit(ctx, doc, "doc.txt", "user-1", "agent-1")
	require.NoError(t, err)
	f.manager.Wait()

	job, err := f.manager.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, len(expected), job.TotalChunks)
	assert.Equal(t, job.TotalChunks, job.ProcessedChunks)
	assert.Equal(t, 100.0, job.Progress())
	assert.Empty(t, job.Error)
	assert.Equal(t, "doc.txt", job.Filename)

	ns := core.Namespace("agent-1", "user-1")
	for i, content := range expected {
		record, err := f.repos.Memories.GetMemory(ctx, ns, chunkMemoryID(jobID, i))
		require.NoError(t, err)
		assert.Equal(t, content, record.Content)
		assert.Equal(t, jobID, record.DocumentID)
		assert.Equal(t, i, record.ChunkIndex)
		assert.Equal(t, "doc.txt", record.Source)
		assert.NotEmpty(t, record.Vector)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(f.manager.Metrics().JobsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.manager.Metrics().JobsFinished.WithLabelValues("COMPLETED")))
	assert.Equal(t, float64(len(expected)), testutil.ToFloat64(f.manager.Metrics().ChunksProcessed))
}

func TestSubmit_SingleChunkWhenShort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	jobID, err := f.manager.Submit(ctx, "  short   note  ", "", "user-1", "agent-1")
	require.NoError(t, err)
	f.manager.Wait()

	job, err := f.manager.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.TotalChunks)

	record, err := f.repos.Memories.GetMemory(ctx, core.Namespace("agent-1", "user-1"), chunkMemoryID(jobID, 0))
	require.NoError(t, err)
	assert.Equal(t, "short note", record.Content)
}

func TestSubmit_EmbedFailureKeepsEarlierChunks(t *testing.T) {
	f := newFixture(t, WithChunker(mustChunker(t, 100, 10)))
	ctx := context.Background()

	var calls atomic.Int32
	f.embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if calls.Add(1) == 2 {
			return nil, errors.New("model crashed: token=secret")
		}
		return []float32{1, 0, 0}, nil
	})

	// No sentence boundaries: 150 characters split into exactly two chunks
	jobID, err := f.manager.Submit(ctx, strings.Repeat("a", 150), "a.txt", "user-1", "agent-1")
	require.NoError(t, err)
	f.manager.Wait()

	job, err := f.manager.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.TotalChunks)
	assert.Equal(t, 1, job.ProcessedChunks)
	assert.Equal(t, "embedding chunk 2 of 2 failed", job.Error)
	assert.NotContains(t, job.Error, "secret")

	ns := core.Namespace("agent-1", "user-1")
	_, err = f.repos.Memories.GetMemory(ctx, ns, chunkMemoryID(jobID, 0))
	assert.NoError(t, err, "first chunk must not be rolled back")

	count, err := f.repos.Memories.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.manager.Metrics().JobsFinished.WithLabelValues("FAILED")))
}

func TestSubmit_StepTimeoutFailsJob(t *testing.T) {
	f := newFixture(t, WithStepTimeout(20*time.Millisecond))
	ctx := context.Background()

	f.embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	jobID, err := f.manager.Submit(ctx, "slow text", "", "user-1", "agent-1")
	require.NoError(t, err)
	f.manager.Wait()

	job, err := f.manager.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, job.Status)
	assert.Equal(t, "embedding chunk 1 of 1 timed out", job.Error)
	assert.Equal(t, 0, job.ProcessedChunks)
}

func TestSubmit_VectorStoreFailure(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	manager, err := NewManager(repos.Jobs, failingVectorStore{}, mock.NewMockEmbedder())
	require.NoError(t, err)
	defer manager.Release()

	ctx := context.Background()
	jobID, err := manager.Submit(ctx, "text", "", "user-1", "agent-1")
	require.NoError(t, err)
	manager.Wait()

	job, err := manager.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, job.Status)
	assert.Equal(t, "indexing chunk 1 of 1 failed", job.Error)
}

func TestSubmit_StartsPending(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, WithPoolSize(1))
	ctx := context.Background()

	f.embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		select {
		case <-release:
			return []float32{1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	first, err := f.manager.Submit(ctx, "first", "", "user-1", "agent-1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := f.manager.GetStatus(ctx, first)
		return err == nil && job.Status == core.JobStatusEmbedding
	}, time.Second, 5*time.Millisecond)

	// The only worker is busy, so the second job waits in PENDING
	second, err := f.manager.Submit(ctx, "second", "", "user-1", "agent-1")
	require.NoError(t, err)
	job, err := f.manager.GetStatus(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.ProcessedChunks)
	assert.Equal(t, 0.0, job.Progress())

	close(release)
	f.manager.Wait()

	for _, id := range []string{first, second} {
		job, err := f.manager.GetStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.JobStatusCompleted, job.Status)
	}
}

func TestSubmit_CallerCancellationDoesNotAbortJob(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	jobID, err := f.manager.Submit(ctx, "keep going", "", "user-1", "agent-1")
	require.NoError(t, err)
	cancel()
	f.manager.Wait()

	job, err := f.manager.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
}

func TestSubmit_GraphFailureIsSwallowed(t *testing.T) {
	g := &failingGraph{}
	f := newFixture(t, WithGraphUpdater(g))
	ctx := context.Background()

	jobID, err := f.manager.Submit(ctx, "graph databases", "", "user-1", "agent-1")
	require.NoError(t, err)
	f.manager.Wait()

	job, err := f.manager.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, int32(1), g.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.manager.Metrics().GraphUpdateFailures))
}

func TestSubmit_UpdatesGraphWithJobID(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	store, err := graph.NewStore(repos.Graph)
	require.NoError(t, err)
	manager, err := NewManager(repos.Jobs, repos.Memories, mock.NewMockEmbedder(), WithGraphUpdater(store))
	require.NoError(t, err)
	defer manager.Release()

	ctx := context.Background()
	jobID, err := manager.Submit(ctx, "Vector search needs embeddings.", "", "user-1", "agent-1")
	require.NoError(t, err)
	manager.Wait()

	snap, err := store.Snapshot(ctx, "user-1", []string{jobID})
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 4)
	assert.Len(t, snap.Edges, 6)
}

func TestSubmit_AfterReleaseFailsJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.manager.Release()

	jobID, err := f.manager.Submit(ctx, "late", "", "user-1", "agent-1")
	require.NoError(t, err)
	f.manager.Wait()

	job, err := f.manager.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, job.Status)
	assert.Equal(t, "internal error", job.Error)
}

func TestChunkMemoryID_Deterministic(t *testing.T) {
	a := chunkMemoryID("6ba7b810-9dad-11d1-80b4-00c04fd430c8", 0)
	assert.Equal(t, a, chunkMemoryID("6ba7b810-9dad-11d1-80b4-00c04fd430c8", 0))
	assert.NotEqual(t, a, chunkMemoryID("6ba7b810-9dad-11d1-80b4-00c04fd430c8", 1))
	assert.NotEmpty(t, chunkMemoryID("not-a-uuid", 0))
}
