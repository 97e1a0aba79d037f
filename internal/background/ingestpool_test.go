package background

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/eventbus"
	"dev.helix.agent/internal/retrieval"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 8)
		for _, r := range t {
			v[int(r)%8]++
		}
		vecs[i] = v
	}
	return vecs, nil
}

func TestPoolSubmitIngestsAndBecomesSearchable(t *testing.T) {
	idx := retrieval.NewIndex(retrieval.NewMemoryVectorStore(), fakeEmbedder{}, nil)
	pool := New(idx, nil)

	pool.Submit(context.Background(), eventbus.IngestJob{
		SessionID: "session-1",
		DocID:     "doc-1",
		Filename:  "notes.txt",
		Content:   "The fox ran through the forest quickly.",
		KB:        true,
	})
	pool.Wait()

	assert.Empty(t, pool.Errors())

	collection := retrieval.CollectionName("kb", "session-1")
	results, err := idx.Search(context.Background(), collection, "fox forest", 6, retrieval.StrategyRRF)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestPoolCompletesMoreJobsThanConcurrencySlots(t *testing.T) {
	idx := retrieval.NewIndex(retrieval.NewMemoryVectorStore(), fakeEmbedder{}, nil)
	pool := New(idx, nil)

	start := time.Now()
	for i := 0; i < MaxConcurrentIngests*2; i++ {
		pool.Submit(context.Background(), eventbus.IngestJob{
			SessionID: "session-2",
			DocID:     "doc",
			Content:   "some content",
		})
	}
	pool.Wait()
	assert.Less(t, time.Since(start), 5*time.Second)
}
