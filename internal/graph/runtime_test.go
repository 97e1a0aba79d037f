package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/streamsink"
)

type fakeNode struct {
	route  domain.Route
	result string
	err    error
}

func (f *fakeNode) Route() domain.Route { return f.route }

func (f *fakeNode) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	return f.result, f.err
}

type recordingSink struct {
	completions []string
}

func (r *recordingSink) Status(node, status, message string, progress float64) {}

func (r *recordingSink) Content(node, delta, full string, isComplete bool) {
	if isComplete {
		r.completions = append(r.completions, node)
	}
}

func (r *recordingSink) Error(err error) {}

func TestExecutePlanEmitsOneCompletionFramePerStep(t *testing.T) {
	rt := New(nil)
	rt.Register(&fakeNode{route: domain.RouteRAG, result: "rag result"})
	rt.Register(&fakeNode{route: domain.RouteWebSearch, result: "web result"})

	state := &domain.GraphState{
		Context: domain.ConversationContext{
			Plan: &domain.TaskPlan{Steps: []domain.PlanStep{
				{Route: domain.RouteRAG, SubQuery: "q"},
				{Route: domain.RouteWebSearch, SubQuery: "q"},
			}},
		},
	}

	sink := &recordingSink{}
	err := rt.Execute(context.Background(), state, sink)
	require.NoError(t, err)
	assert.Equal(t, []string{string(domain.RouteRAG), string(domain.RouteWebSearch)}, sink.completions)
}

func TestExecutePlanStopsOnNodeError(t *testing.T) {
	rt := New(nil)
	rt.Register(&fakeNode{route: domain.RouteRAG, err: assert.AnError})

	state := &domain.GraphState{
		Context: domain.ConversationContext{
			Plan: &domain.TaskPlan{Steps: []domain.PlanStep{{Route: domain.RouteRAG, SubQuery: "q"}}},
		},
	}

	err := rt.Execute(context.Background(), state, &recordingSink{})
	require.Error(t, err)
}
