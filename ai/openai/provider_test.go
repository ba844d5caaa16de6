package openai

import (
	"testing"

	"github.com/poiesic/mindex/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{EmbeddingHost: "http://localhost:11434"})
	assert.Error(t, err)
}

func TestNewProvider_NormalizesHost(t *testing.T) {
	cfg := ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434/"))
	provider, err := NewProvider(cfg)
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.NotNil(t, provider.Embedder())
}
