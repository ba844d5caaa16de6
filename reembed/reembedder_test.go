package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/mindex/ai/mock"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

// seed stores n stale records in each of the given (agent, user) namespaces.
func seed(t *testing.T, repos *badger.Repositories, n int, scopes ...[2]string) {
	t.Helper()
	ctx := context.Background()
	for _, scope := range scopes {
		ns := core.Namespace(scope[0], scope[1])
		records := make([]*core.MemoryRecord, n)
		for i := range records {
			records[i] = &core.MemoryRecord{
				ID:         fmt.Sprintf("%s-%03d", scope[1], i),
				DocumentID: "doc-" + scope[1],
				Content:    fmt.Sprintf("memory %d for %s", i, scope[1]),
				UserID:     scope[1],
				AgentID:    scope[0],
				Vector:     []float32{1, 1, 1},
				CreatedAt:  time.Now(),
			}
		}
		require.NoError(t, repos.Memories.Upsert(ctx, ns, records...))
	}
}

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 4
	cfg.ReportInterval = 5
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestNewReembedder_RequiresDependencies(t *testing.T) {
	repos := newTestRepos(t)

	_, err := NewReembedder(nil, mock.NewMockEmbedder(), nil, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewReembedder(repos.Memories, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestReembedder_Run(t *testing.T) {
	repos := newTestRepos(t)
	seed(t, repos, 10, [2]string{"agent-1", "alice"}, [2]string{"agent-1", "bob"})

	embedder := mock.NewMockEmbedder()
	var out bytes.Buffer
	r, err := NewReembedder(repos.Memories, embedder, fastConfig(), &out)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Records)
	assert.Equal(t, 5, summary.Batches)
	assert.Contains(t, out.String(), "Reembedded 20 memories")

	ctx := context.Background()
	ns := core.Namespace("agent-1", "bob")
	record, err := repos.Memories.GetMemory(ctx, ns, "bob-007")
	require.NoError(t, err)
	assert.Len(t, record.Vector, mock.DefaultDimensions)
	assert.InDeltaSlice(t, NormalizeVector(mock.Vector(record.Content, mock.DefaultDimensions)), record.Vector, 1e-6)
	assert.Equal(t, "doc-bob", record.DocumentID)
	assert.Equal(t, ns, record.Namespace)
}

func TestReembedder_RunNamespace(t *testing.T) {
	repos := newTestRepos(t)
	seed(t, repos, 3, [2]string{"agent-1", "alice"}, [2]string{"agent-1", "bob"})

	cfg := fastConfig()
	cfg.Namespace = core.Namespace("agent-1", "alice")
	r, err := NewReembedder(repos.Memories, mock.NewMockEmbedder(), cfg, nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Records)

	untouched, err := repos.Memories.GetMemory(context.Background(), core.Namespace("agent-1", "bob"), "bob-000")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1}, untouched.Vector)
}

func TestReembedder_RunEmpty(t *testing.T) {
	repos := newTestRepos(t)
	embedder := mock.NewMockEmbedder()

	var out bytes.Buffer
	r, err := NewReembedder(repos.Memories, embedder, nil, &out)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Records)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, out.String(), "No memories")
}

func TestReembedder_RunStopsOnFailure(t *testing.T) {
	repos := newTestRepos(t)
	seed(t, repos, 10, [2]string{"agent-1", "alice"})

	calls := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls > 1 {
			return nil, core.NewValidationError("input too long")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text, 8)
		}
		return out, nil
	}

	r, err := NewReembedder(repos.Memories, embedder, fastConfig(), nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Equal(t, 4, summary.Records)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 2, calls, "validation errors are not retried")
}

func TestReembedder_RunCancelled(t *testing.T) {
	repos := newTestRepos(t)
	seed(t, repos, 10, [2]string{"agent-1", "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		cancel()
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0}
		}
		return out, nil
	}

	r, err := NewReembedder(repos.Memories, embedder, fastConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
