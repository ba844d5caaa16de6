package concept

import (
	"strings"
	"unicode"
)

// Extractor pulls normalized keyword concepts out of text.
type Extractor struct {
	stopWords map[string]struct{}
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithStopWords adds words to the stopword list.
func WithStopWords(words ...string) Option {
	return func(e *Extractor) {
		for _, w := range words {
			e.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewExtractor creates an extractor seeded with the default English stopwords.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{stopWords: make(map[string]struct{}, len(defaultStopWords))}
	for _, w := range defaultStopWords {
		e.stopWords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// ExtractConcepts extracts concepts with the default extractor.
func ExtractConcepts(text string) []string {
	return defaultExtractor.Extract(text)
}

// IsStopWord reports whether word is filtered out.
func (e *Extractor) IsStopWord(word string) bool {
	_, ok := e.stopWords[word]
	return ok
}

// Extract returns the unique non-stopword tokens of text in first-occurrence order.
// Empty or whitespace-only input yields an empty result.
func (e *Extractor) Extract(text string) []string {
	seen := make(map[string]struct{})
	concepts := make([]string, 0)

	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		word := current.String()
		current.Reset()
		if e.IsStopWord(word) {
			return
		}
		if _, dup := seen[word]; dup {
			return
		}
		seen[word] = struct{}{}
		concepts = append(concepts, word)
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return concepts
}
