// Package nodes implements the leaf and near-leaf graph nodes: C3
// retrieval, C4 web search, and C6's simple-LLM/image/tool nodes,
// grounded on the original backend's Basic_llm/basic_llm.py,
// Image/image.py, and MCP/mcp.py (shapes only — the Go port talks to
// providers through internal/llmclient rather than a Python SDK).
package nodes

import (
	"context"
	"strings"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/llmclient"
	"dev.helix.agent/internal/streamsink"
)

// SimpleNode answers a query with a single chat completion and no
// retrieval context — the fallback path when no documents/KB apply.
type SimpleNode struct {
	llm *llmclient.Client
}

// NewSimpleNode builds the plain-generation leaf node.
func NewSimpleNode(llm *llmclient.Client) *SimpleNode {
	return &SimpleNode{llm: llm}
}

func (n *SimpleNode) Route() domain.Route { return domain.RouteSimpleLLM }

func (n *SimpleNode) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	messages := historyMessages(state, query, state.Config.CustomInstruction)

	var full strings.Builder
	err := n.llm.Stream(ctx, llmclient.ChatRequest{Model: state.Config.Model, Messages: messages}, func(c llmclient.Chunk) error {
		if c.Done {
			return nil
		}
		full.WriteString(c.Content)
		if sink != nil {
			sink.Content(string(domain.RouteSimpleLLM), c.Content, full.String(), false)
		}
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "simple llm completion failed", err)
	}
	return full.String(), nil
}

// historyMessages builds the chat-completion message list: an optional
// system instruction, the prior conversation, then the current query.
func historyMessages(state *domain.GraphState, query, systemInstruction string) []llmclient.ChatMessage {
	var messages []llmclient.ChatMessage
	if systemInstruction != "" {
		messages = append(messages, llmclient.ChatMessage{Role: "system", Content: systemInstruction})
	}
	for _, m := range state.Messages {
		messages = append(messages, llmclient.ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llmclient.ChatMessage{Role: "user", Content: query})
	return messages
}
