// Package chunk splits normalized text into bounded, overlapping segments
// suitable for independent embedding.
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMaxChars is the default upper bound on chunk length, in characters.
	DefaultMaxChars = 1000

	// DefaultOverlap is the default number of characters shared by consecutive chunks.
	DefaultOverlap = 200
)

// ErrInvalidConfig is returned when the size/overlap pair cannot make progress.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunker splits text into segments of at most MaxChars characters.
// It is immutable and safe for concurrent use.
type Chunker struct {
	maxChars int
	overlap  int
}

// New creates a Chunker. overlap must be non-negative and smaller than maxChars.
func New(maxChars, overlap int) (*Chunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max chars must be positive, got %d", ErrInvalidConfig, maxChars)
	}
	if overlap < 0 || overlap >= maxChars {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlap, maxChars)
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// MaxChars returns the configured chunk size.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Normalize collapses whitespace runs to a single space and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split normalizes text and cuts it into chunks.
//
// Each window holds up to MaxChars characters. A window that does not reach the
// end of the text is cut just after its last sentence terminator, provided the
// terminator lies past the overlap region; otherwise it is cut at the window
// boundary. The next window starts Overlap characters before the cut.
func (c *Chunker) Split(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) <= c.maxChars {
		return []string{normalized}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+c.maxChars, len(runes))
		cut := end
		if end < len(runes) {
			if i := lastTerminator(runes[start:end]); i >= 0 && i+1 > c.overlap {
				cut = start + i + 1
			}
		}

		if piece := strings.TrimSpace(string(runes[start:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		if cut >= len(runes) {
			break
		}

		step := max(cut-start-c.overlap, 1)
		start += step
	}
	return chunks
}

// lastTerminator returns the index of the last '.', '!' or '?' in window, or -1.
func lastTerminator(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}
