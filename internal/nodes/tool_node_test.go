package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/domain"
)

type fakeToolExecutor struct {
	result string
	err    error
}

func (f *fakeToolExecutor) Execute(ctx context.Context, mcpSchema, query string) (string, error) {
	return f.result, f.err
}

func TestToolNodeRequiresMCPSchema(t *testing.T) {
	node := NewToolNode(&fakeToolExecutor{result: "ok"})
	state := &domain.GraphState{}

	_, err := node.Run(context.Background(), state, "do something", nil)
	require.Error(t, err)
}

func TestToolNodeReturnsExecutorResult(t *testing.T) {
	node := NewToolNode(&fakeToolExecutor{result: "tool output"})
	state := &domain.GraphState{Config: domain.GPTConfig{MCPSchema: `{"servers":["local"]}`}}

	result, err := node.Run(context.Background(), state, "do something", nil)
	require.NoError(t, err)
	assert.Equal(t, "tool output", result)
}

func TestToolNodeRoute(t *testing.T) {
	node := NewToolNode(&fakeToolExecutor{})
	assert.Equal(t, domain.RouteTool, node.Route())
}
