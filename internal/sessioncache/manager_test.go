package sessioncache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/retrieval"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	idx := retrieval.NewIndex(retrieval.NewMemoryVectorStore(), fakeEmbedder{}, nil)
	cfg := config.RedisConfig{Host: mr.Host(), Port: mr.Port(), Enabled: true}
	return NewManager(cfg, idx, nil), mr
}

func TestManagerEnablesWhenRedisReachable(t *testing.T) {
	m, _ := newTestManager(t)
	assert.True(t, m.IsEnabled())
}

func TestManagerDisablesGracefullyWhenRedisUnreachable(t *testing.T) {
	idx := retrieval.NewIndex(retrieval.NewMemoryVectorStore(), fakeEmbedder{}, nil)
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: "1", Enabled: true}
	m := NewManager(cfg, idx, nil)
	assert.False(t, m.IsEnabled())
}

func TestLLMResponseRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, ok := m.GetLLMResponse(ctx, "session-1", map[string]string{"q": "hi"})
	assert.False(t, ok)

	m.SetLLMResponse(ctx, "session-1", map[string]string{"q": "hi"}, "hello there")
	resp, ok := m.GetLLMResponse(ctx, "session-1", map[string]string{"q": "hi"})
	require.True(t, ok)
	assert.Equal(t, "hello there", resp)
}

func TestEnsureAndInvalidateUserDocsCollection(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	name, err := m.EnsureUserDocsCollection(ctx, "session-2")
	require.NoError(t, err)
	assert.Equal(t, "user_docs_session-2", name)

	require.NoError(t, m.InvalidateUserDocs(ctx, "session-2"))
}

func TestEndSessionDropsAllCollections(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	kbName, err := m.EnsureKBCollection(ctx, "session-3")
	require.NoError(t, err)
	userName, err := m.EnsureUserDocsCollection(ctx, "session-3")
	require.NoError(t, err)
	require.NoError(t, m.index.Ingest(ctx, kbName, "kb content", retrieval.IngestOptions{DocID: "kb-1"}))
	require.NoError(t, m.index.Ingest(ctx, userName, "user content", retrieval.IngestOptions{DocID: "u-1"}))
	_, err = m.index.Search(ctx, kbName, "content", 6, retrieval.StrategyDense)
	require.NoError(t, err)

	m.EndSession(ctx, "session-3")

	_, err = m.index.Search(ctx, kbName, "content", 6, retrieval.StrategyDense)
	assert.Error(t, err)
	_, err = m.index.Search(ctx, userName, "content", 6, retrieval.StrategyDense)
	assert.Error(t, err)
}
