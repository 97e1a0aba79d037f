package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalIndexRanksExactMatchHighest(t *testing.T) {
	chunks := []Chunk{
		{ID: "a", Content: "the quick brown fox jumps over the lazy dog"},
		{ID: "b", Content: "completely unrelated content about cooking recipes"},
		{ID: "c", Content: "another fox related document about foxes in the wild"},
	}
	idx := NewLexicalIndex(chunks)

	results := idx.Search("fox", 10)
	require.NotEmpty(t, results)
	assert.NotEqual(t, "b", results[0].Chunk.ID)
}

func TestLexicalIndexEmptyQueryReturnsNothing(t *testing.T) {
	idx := NewLexicalIndex([]Chunk{{ID: "a", Content: "the and of"}})
	assert.Empty(t, idx.Search("the and of", 10))
}

func TestLexicalIndexAppliesNoiseThreshold(t *testing.T) {
	chunks := []Chunk{
		{ID: "a", Content: "apples oranges bananas grapes melons"},
		{ID: "b", Content: "apples are a popular fruit grown worldwide in orchards"},
	}
	idx := NewLexicalIndex(chunks)
	results := idx.Search("apples", 10)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
	}
}
