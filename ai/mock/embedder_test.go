package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_DeterministicUnitLength(t *testing.T) {
	a := Vector("hello", 16)
	b := Vector("hello", 16)
	c := Vector("world", 16)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_Defaults(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	vec, err := m.EmbedText(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimensions)

	vecs, err := m.EmbedTexts(ctx, []string{"b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{"a", "b", "c"}, m.Texts())

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	assert.Empty(t, m.Texts())
}

func TestMockEmbedder_InjectedFailure(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, boom
		}
		return []float32{1}, nil
	})

	_, err := m.EmbedTexts(context.Background(), []string{"good", "bad"})
	assert.ErrorIs(t, err, boom)
}
