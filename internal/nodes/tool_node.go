package nodes

import (
	"context"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/streamsink"
)

// ToolExecutor is the external Model Context Protocol tool runtime this
// node dispatches to — an external collaborator per spec.md §1 scope,
// shaped after the original backend's MCP/mcp.py schema plumbing.
type ToolExecutor interface {
	Execute(ctx context.Context, mcpSchema string, query string) (string, error)
}

// ToolNode is C6's external-tool leaf: it has no model of its own, it
// simply forwards the query to whatever MCP servers the session's
// GPTConfig.MCPSchema names and returns the tool's textual result.
type ToolNode struct {
	executor ToolExecutor
}

// NewToolNode builds the tool-dispatch leaf node.
func NewToolNode(executor ToolExecutor) *ToolNode {
	return &ToolNode{executor: executor}
}

func (n *ToolNode) Route() domain.Route { return domain.RouteTool }

func (n *ToolNode) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	if state.Config.MCPSchema == "" {
		return "", apperr.New(apperr.KindInputInvalid, "no tool schema configured for this session")
	}

	if sink != nil {
		sink.Status(string(domain.RouteTool), "processing", "Invoking external tool", 0.3)
	}

	result, err := n.executor.Execute(ctx, state.Config.MCPSchema, query)
	if err != nil {
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "tool execution failed", err)
	}

	if sink != nil {
		sink.Content(string(domain.RouteTool), result, result, false)
	}
	return result, nil
}
