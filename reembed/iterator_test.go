package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/mindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIterator_Batches(t *testing.T) {
	repos := newTestRepos(t)
	seed(t, repos, 7, [2]string{"agent-1", "alice"})

	var sizes []int
	err := NewRecordIterator(repos.Memories, 3).ForEach(context.Background(), func(batch []*core.MemoryRecord) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestRecordIterator_DefaultBatchSize(t *testing.T) {
	repos := newTestRepos(t)
	it := NewRecordIterator(repos.Memories, 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)
}

func TestRecordIterator_Namespace(t *testing.T) {
	repos := newTestRepos(t)
	seed(t, repos, 2, [2]string{"agent-1", "alice"}, [2]string{"agent-2", "alice"})

	ns := core.Namespace("agent-2", "alice")
	var seen []string
	err := NewRecordIterator(repos.Memories, 10).InNamespace(ns).ForEach(context.Background(), func(batch []*core.MemoryRecord) error {
		for _, r := range batch {
			seen = append(seen, r.Namespace)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ns, ns}, seen)
}

func TestRecordIterator_StopsOnError(t *testing.T) {
	repos := newTestRepos(t)
	seed(t, repos, 6, [2]string{"agent-1", "alice"})

	stop := errors.New("stop")
	calls := 0
	err := NewRecordIterator(repos.Memories, 2).ForEach(context.Background(), func([]*core.MemoryRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestRecordIterator_Cancelled(t *testing.T) {
	repos := newTestRepos(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRecordIterator(repos.Memories, 2).ForEach(ctx, func([]*core.MemoryRecord) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
