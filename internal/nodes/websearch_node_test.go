package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/domain"
)

type fakeWebSearchClient struct {
	results []SearchResult
	err     error
}

func (f *fakeWebSearchClient) Search(ctx context.Context, query string, maxResults int, depth string) ([]SearchResult, error) {
	return f.results, f.err
}

func TestWebSearchNodeNoProviderConfiguredReturnsCanonicalMessage(t *testing.T) {
	node := NewWebSearchNode(&fakeWebSearchClient{}, nil)
	result, err := node.Run(context.Background(), &domain.GraphState{}, "latest news", nil)
	require.NoError(t, err)
	assert.Equal(t, noResultsMessage, result)
}

func TestWebSearchNodeZeroResultsReturnsCanonicalMessage(t *testing.T) {
	node := NewWebSearchNode(&fakeWebSearchClient{results: nil}, nil)
	result, err := node.Run(context.Background(), &domain.GraphState{}, "latest news", nil)
	require.NoError(t, err)
	assert.Equal(t, noResultsMessage, result)
}

func TestFormatSearchResultsUsesSourceBracketFormat(t *testing.T) {
	results := []SearchResult{
		{Title: "A", URL: "http://a", Snippet: "snippet a"},
		{Title: "B", URL: "http://b", Snippet: "snippet b"},
	}
	formatted := formatSearchResults(results)
	assert.Contains(t, formatted, "[Source 1] (http://a)\nsnippet a")
	assert.Contains(t, formatted, "[Source 2] (http://b)\nsnippet b")
}

func TestFormatSearchResultsTruncatesSnippet(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	results := []SearchResult{{Title: "A", URL: "http://a", Snippet: string(long)}}
	formatted := formatSearchResults(results)
	assert.Contains(t, formatted, string(long[:maxSnippetLen]))
	assert.NotContains(t, formatted, string(long[:maxSnippetLen+1]))
}
