package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/mindex/ai/mock"
	"github.com/poiesic/mindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upsertCall struct {
	namespace string
	ids       []string
}

type recordingStore struct {
	calls []upsertCall
	err   error
}

func (s *recordingStore) Upsert(_ context.Context, namespace string, records ...*core.MemoryRecord) error {
	call := upsertCall{namespace: namespace}
	for _, r := range records {
		call.ids = append(call.ids, r.ID)
	}
	s.calls = append(s.calls, call)
	return s.err
}

func (s *recordingStore) Query(context.Context, string, []float32, int) ([]*core.SearchResult, error) {
	return nil, nil
}

func record(ns, id, content string) *core.MemoryRecord {
	return &core.MemoryRecord{ID: id, Namespace: ns, Content: content, UserID: "u"}
}

func TestBatchProcessor_GroupsByNamespace(t *testing.T) {
	store := &recordingStore{}
	bp := NewBatchProcessor(store, mock.NewMockEmbedder(), 3, time.Millisecond)

	records := []*core.MemoryRecord{
		record("b", "1", "one"),
		record("a", "2", "two"),
		record("b", "3", "three"),
	}
	require.NoError(t, bp.Process(context.Background(), records))

	assert.Equal(t, []upsertCall{
		{namespace: "b", ids: []string{"1", "3"}},
		{namespace: "a", ids: []string{"2"}},
	}, store.calls)
	for _, r := range records {
		assert.Len(t, r.Vector, mock.DefaultDimensions)
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	store := &recordingStore{}
	embedder := mock.NewMockEmbedder()
	bp := NewBatchProcessor(store, embedder, 3, time.Millisecond)

	require.NoError(t, bp.Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, store.calls)
}

func TestBatchProcessor_CountMismatchRetried(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	store := &recordingStore{}
	bp := NewBatchProcessor(store, embedder, 2, time.Millisecond)

	err := bp.Process(context.Background(), []*core.MemoryRecord{record("a", "1", "x"), record("a", "2", "y")})
	assert.ErrorIs(t, err, ErrEmbeddingCountMismatch)
	assert.EqualValues(t, 2, embedder.CallCount())
	assert.Empty(t, store.calls)
}

func TestBatchProcessor_UpsertError(t *testing.T) {
	boom := errors.New("disk full")
	store := &recordingStore{err: boom}
	bp := NewBatchProcessor(store, mock.NewMockEmbedder(), 1, time.Millisecond)

	err := bp.Process(context.Background(), []*core.MemoryRecord{record("a", "1", "x")})
	assert.ErrorIs(t, err, boom)
}
