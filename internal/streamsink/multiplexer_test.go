package streamsink

import "testing"

import (
	"github.com/stretchr/testify/assert"
)

func TestChunkWordsSplitsIntoWindows(t *testing.T) {
	full := "one two three four five six seven eight nine ten eleven"
	chunks := ChunkWords(full, 10)
	assert.Len(t, chunks, 2)
}

func TestChunkWordsEmptyInput(t *testing.T) {
	assert.Empty(t, ChunkWords("", 10))
}

func TestChunkWordsDefaultsWindowSize(t *testing.T) {
	full := "a b c d e f g h i j k"
	chunks := ChunkWords(full, 0)
	assert.Len(t, chunks, 2)
}
