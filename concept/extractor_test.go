package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractConcepts(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []string
		exclude []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "whitespace only", text: "  \n\t ", want: []string{}},
		{
			name:    "sentence with stopwords",
			text:    "The quick brown fox jumps over the lazy dog and the fox.",
			want:    []string{"quick", "brown", "fox", "jumps", "lazy", "dog"},
			exclude: []string{"the", "and", "over"},
		},
		{
			name: "punctuation and case",
			text: "Go-routines, CHANNELS; go_routines!",
			want: []string{"go", "routines", "channels"},
		},
		{
			name: "digits are alphanumeric",
			text: "http2 and tls13",
			want: []string{"http2", "tls13"},
		},
		{
			name: "unicode letters",
			text: "Café crème",
			want: []string{"café", "crème"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractConcepts(tt.text)
			assert.Equal(t, tt.want, got)
			for _, word := range tt.exclude {
				assert.NotContains(t, got, word)
			}
		})
	}
}

func TestExtractor_WithStopWords(t *testing.T) {
	e := NewExtractor(WithStopWords("Fox"))

	got := e.Extract("quick fox")

	assert.Equal(t, []string{"quick"}, got)
	assert.True(t, e.IsStopWord("fox"))
	assert.False(t, defaultExtractor.IsStopWord("fox"))
}

func TestExtract_StableOrder(t *testing.T) {
	text := "gamma alpha beta alpha gamma"
	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{"gamma", "alpha", "beta"}, ExtractConcepts(text))
	}
}
