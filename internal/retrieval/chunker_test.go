package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveChunkerSmallTextIsSingleChunk(t *testing.T) {
	c := NewRecursiveChunker(DefaultChunkerConfig())
	chunks := c.Chunk("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Content)
}

func TestRecursiveChunkerRespectsChunkSize(t *testing.T) {
	c := NewRecursiveChunker(ChunkerConfig{ChunkSize: 50, Overlap: 10, Separators: []string{"\n\n", "\n", ". ", " "}})
	paragraph := strings.Repeat("word ", 40)
	chunks := c.Chunk(paragraph)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), 60) // chunk size + overlap
	}
}

func TestRecursiveChunkerAppliesOverlap(t *testing.T) {
	c := NewRecursiveChunker(ChunkerConfig{ChunkSize: 20, Overlap: 5, Separators: []string{" "}})
	text := "aaaaaaaaaa bbbbbbbbbb cccccccccc dddddddddd"
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasPrefix(chunks[1].Content, chunks[0].Content[len(chunks[0].Content)-5:]))
}

func TestChunkDocumentStampsIDsAndMetadata(t *testing.T) {
	c := NewRecursiveChunker(DefaultChunkerConfig())
	chunks := c.ChunkDocument("doc-1", "hello world", map[string]string{"filename": "a.txt"})
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1", chunks[0].DocID)
	assert.Equal(t, "doc-1_chunk_0", chunks[0].ID)
	assert.Equal(t, "a.txt", chunks[0].Metadata["filename"])
}
