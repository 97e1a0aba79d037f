package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a deterministic one-hot-ish vector per text so
// tests can assert on retrieval behavior without a real provider.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 8)
		for _, r := range t {
			v[int(r)%8] += 1
		}
		vecs[i] = v
	}
	return vecs, nil
}

func TestIndexIngestAndSearch(t *testing.T) {
	idx := NewIndex(NewMemoryVectorStore(), fakeEmbedder{}, nil)
	collection := CollectionName("kb", "session-1")

	err := idx.Ingest(context.Background(), collection, "The fox ran through the forest quickly.", IngestOptions{
		DocID: "doc-1", Filename: "story.txt", FileType: "txt",
	})
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), collection, "fox forest", 6, StrategyRRF)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestIndexSearchMissReturnsRetrievalMissError(t *testing.T) {
	idx := NewIndex(NewMemoryVectorStore(), fakeEmbedder{}, nil)
	_, err := idx.Search(context.Background(), CollectionName("kb", "empty"), "anything", 6, StrategyRRF)
	require.Error(t, err)
}

func TestDropCollectionClearsLexicalIndex(t *testing.T) {
	idx := NewIndex(NewMemoryVectorStore(), fakeEmbedder{}, nil)
	collection := CollectionName("user_docs", "session-2")
	require.NoError(t, idx.Ingest(context.Background(), collection, "some content here", IngestOptions{DocID: "d"}))
	require.NoError(t, idx.DropCollection(context.Background(), collection))

	_, err := idx.Search(context.Background(), collection, "content", 6, StrategyRRF)
	assert.Error(t, err)
}
