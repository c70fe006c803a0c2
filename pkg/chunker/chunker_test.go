package chunker_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/grounder/pkg/chunker"
)

func TestNew_RejectsBadParams(t *testing.T) {
	_, err := chunker.New(0, 0)
	assert.Error(t, err)

	_, err = chunker.New(100, -1)
	assert.Error(t, err)

	_, err = chunker.New(100, 100)
	assert.Error(t, err)

	_, err = chunker.New(100, 150)
	assert.Error(t, err)

	c, err := chunker.New(100, 99)
	assert.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSplit_Empty(t *testing.T) {
	c := chunker.Default()
	assert.Nil(t, c.Split(""))
}

func TestSplit_ShortContentIsSingleChunk(t *testing.T) {
	c, err := chunker.New(50, 10)
	require.NoError(t, err)

	content := "short text that fits in one chunk"
	chunks := c.Split(content)

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0])
}

func TestSplit_OverlappingChunks(t *testing.T) {
	c, err := chunker.New(50, 10)
	require.NoError(t, err)

	content := strings.Repeat("word ", 24) // 120 characters
	chunks := c.Split(content)

	require.Len(t, chunks, 3)
	assert.Equal(t, content[0:54], chunks[0])
	assert.Equal(t, content[44:94], chunks[1])
	assert.Equal(t, content[84:], chunks[2])

	// Consecutive chunks share the overlap region.
	assert.True(t, strings.HasPrefix(chunks[1], chunks[0][len(chunks[0])-10:]))
	assert.True(t, strings.HasPrefix(chunks[2], chunks[1][len(chunks[1])-10:]))
}

func TestSplit_ExtendsToWordBoundary(t *testing.T) {
	c, err := chunker.New(10, 2)
	require.NoError(t, err)

	chunks := c.Split("hello worldly words here")

	require.NotEmpty(t, chunks)
	// The first boundary falls inside "worldly" and moves forward to the
	// following space.
	assert.Equal(t, "hello worldly", chunks[0])
}

func TestSplit_NoSpacesRespectsSlackLimit(t *testing.T) {
	c, err := chunker.New(50, 10)
	require.NoError(t, err)

	content := strings.Repeat("a", 200)
	chunks := c.Split(content)

	require.Len(t, chunks, 5)
	for _, chunk := range chunks[:4] {
		assert.Len(t, chunk, 50)
	}
	assert.Len(t, chunks[4], 40)
}

func TestSplit_KeepsRuneBoundaries(t *testing.T) {
	c, err := chunker.New(25, 5)
	require.NoError(t, err)

	// Two-byte runes with no spaces: every nominal cut point at an odd
	// byte offset lands mid-rune and must be pulled back.
	content := strings.Repeat("é", 60)
	chunks := c.Split(content)

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d splits a rune", i)
		assert.NotEmpty(t, chunk)
	}
	assert.True(t, strings.HasSuffix(content, chunks[len(chunks)-1]))
}

func TestSplit_CoversAllContent(t *testing.T) {
	c, err := chunker.New(50, 10)
	require.NoError(t, err)

	content := strings.Repeat("some words in a longer document ", 20)
	chunks := c.Split(content)

	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(content, chunks[0]))
	assert.True(t, strings.HasSuffix(content, chunks[len(chunks)-1]))

	// Every chunk is a contiguous piece of the source and each one starts
	// before the previous one ends.
	offset := 0
	for i, chunk := range chunks {
		idx := strings.Index(content[offset:], chunk)
		require.GreaterOrEqual(t, idx, 0, "chunk %d not found in order", i)
		start := offset + idx
		if i > 0 {
			assert.Less(t, start, offset+len(chunks[i-1]), "gap before chunk %d", i)
		}
		offset = start
	}
}
