package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// boundarySlack bounds how far a chunk end may be pushed forward to the
	// next space so that a chunk never grows without limit.
	boundarySlack = 50

	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunker splits document text into overlapping, word-boundary-respecting
// segments. Size and overlap are character counts.
type Chunker struct {
	size    int
	overlap int
}

// New validates the parameters up front: an overlap at or above the chunk
// size would never let the cursor advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap cannot be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be less than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a chunker with the standard size and overlap.
func Default() *Chunker {
	c, _ := New(DefaultSize, DefaultOverlap)
	return c
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split produces an ordered sequence of chunks covering content with no
// gaps. Each chunk spans [start, start+size) clipped to the content; when
// the clipped end falls mid-word, it is extended to the next space if that
// space lies within boundarySlack characters. Consecutive chunks share
// overlap characters.
func (c *Chunker) Split(content string) []string {
	if content == "" {
		return nil
	}
	if len(content) <= c.size {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := start + c.size
		if end >= len(content) {
			chunks = append(chunks, content[start:])
			break
		}

		if i := strings.IndexByte(content[end:], ' '); i >= 0 && i < boundarySlack {
			end += i
		}
		end = alignRuneStart(content, end)
		if end <= start {
			// The size is smaller than the rune at the cursor; take the
			// whole rune rather than emitting an invalid fragment.
			_, n := utf8.DecodeRuneInString(content[start:])
			end = start + n
		}
		if end >= len(content) {
			chunks = append(chunks, content[start:])
			break
		}

		chunks = append(chunks, content[start:end])

		// overlap < size keeps this strictly increasing; the check guards
		// against a stuck cursor all the same.
		next := alignRuneStart(content, end-c.overlap)
		if next <= start {
			break
		}
		start = next
	}
	return chunks
}

// alignRuneStart moves i back to the nearest rune boundary at or before i,
// so cut points never land inside a multi-byte rune.
func alignRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
