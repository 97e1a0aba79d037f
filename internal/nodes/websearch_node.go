package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/llmclient"
	"dev.helix.agent/internal/streamsink"
)

// noResultsMessage is the canonical terminal message spec.md §4.4/§8
// requires on adapter absence or zero results.
const noResultsMessage = "No web results found"

// maxSnippetLen bounds each cited source's excerpt, per spec.md §4.4.
const maxSnippetLen = 400

// SearchResult is one external web-search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"content"`
}

// WebSearchClient is the external collaborator C4 depends on (spec.md
// §1 scope excludes the search API itself). depth is "basic" or
// "advanced", matching Tavily's own search_depth parameter.
type WebSearchClient interface {
	Search(ctx context.Context, query string, maxResults int, depth string) ([]SearchResult, error)
}

// TavilyClient is a minimal Tavily-compatible search client, grounded on
// Toolkit/Commons/http/client.go's request shape.
type TavilyClient struct {
	httpClient *http.Client
	apiKey     string
}

// NewTavilyClient builds a web-search client from configuration.
func NewTavilyClient(cfg config.WebSearchConfig) *TavilyClient {
	return &TavilyClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
	}
}

// Search performs the Tavily request. With no API key configured it
// returns an empty result set rather than an error — the caller treats
// "no provider" and "zero results" identically, per spec.md §4.4.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int, depth string) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	body, _ := json.Marshal(map[string]interface{}{
		"api_key":      c.apiKey,
		"query":        query,
		"max_results":  maxResults,
		"search_depth": depth,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build search request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "web search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.New(apperr.KindProviderUnavailable, fmt.Sprintf("web search provider status %d", resp.StatusCode))
	}

	var decoded struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperr.Wrap(apperr.KindParseFailure, "decode search response", err)
	}
	return decoded.Results, nil
}

// WebSearchNode is C4: search the web, then ask the LLM to answer
// grounded in the snippets returned.
type WebSearchNode struct {
	client WebSearchClient
	llm    *llmclient.Client
}

// NewWebSearchNode builds the web-search leaf node.
func NewWebSearchNode(client WebSearchClient, llm *llmclient.Client) *WebSearchNode {
	return &WebSearchNode{client: client, llm: llm}
}

func (n *WebSearchNode) Route() domain.Route { return domain.RouteWebSearch }

func (n *WebSearchNode) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	// The web_search hint drives both the Tavily search depth and the
	// answer's formatter register, grounded on websearch.py's
	// run_web_search: advanced/detailed when the toggle is on, basic/
	// concise (and a tighter result count) otherwise.
	maxResults, depth := 2, "basic"
	if state.Hints.WebSearch {
		maxResults, depth = 5, "advanced"
	}

	results, err := n.client.Search(ctx, query, maxResults, depth)
	if err != nil {
		results = nil
	}
	if len(results) == 0 {
		if sink != nil {
			sink.Content(string(domain.RouteWebSearch), noResultsMessage, noResultsMessage, false)
			sink.Content(string(domain.RouteWebSearch), "", noResultsMessage, true)
		}
		return noResultsMessage, nil
	}

	sourcesText := formatSearchResults(results)
	systemPrompt := concisePrompt
	userPrompt := fmt.Sprintf("User Query: %s\n\nSearch Results:\n%s", query, sourcesText)
	if state.Hints.WebSearch {
		systemPrompt = detailedPrompt
		userPrompt = fmt.Sprintf(
			"User Query: %s\n\nSearch Results:\n%s\n\nNow synthesize them into a clear, "+
				"structured answer with:\n- Headings and subheadings\n- Numbered or bulleted lists\n"+
				"- Citations using [Source X] that map to the provided sources\n"+
				"- A final 'Sources Used' section with URLs",
			query, sourcesText)
	}

	messages := historyMessages(state, userPrompt, systemPrompt)

	var full strings.Builder
	streamErr := n.llm.Stream(ctx, llmclient.ChatRequest{Model: state.Config.Model, Messages: messages}, func(c llmclient.Chunk) error {
		if c.Done {
			return nil
		}
		full.WriteString(c.Content)
		if sink != nil {
			sink.Content(string(domain.RouteWebSearch), c.Content, full.String(), false)
		}
		return nil
	})
	if streamErr != nil {
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "web search completion failed", streamErr)
	}
	return full.String(), nil
}

// concisePrompt and detailedPrompt are the two formatter registers from
// websearch.py's websearch_basic.md / websearch.md fallback prompts.
const (
	concisePrompt = "Provide a concise answer (3-5 sentences) based only on the search results. Cite as [Source X]."
	detailedPrompt = "You are a helpful assistant. Format the following search results into a clear, " +
		"structured answer with headings, bullet points, and numbered lists. Always cite sources as [Source X]."
)

// formatSearchResults renders each hit as "[Source i] (url)\n<snippet up
// to 400 chars>", matching spec.md §4.4's citation format exactly.
func formatSearchResults(results []SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		snippet := r.Snippet
		if len(snippet) > maxSnippetLen {
			snippet = snippet[:maxSnippetLen]
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Source %d] (%s)\n%s\n", i+1, r.URL, snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}
