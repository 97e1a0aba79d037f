package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/domain"
)

func TestDetectFollowUpShortQueryWithSources(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{
		UserQuery: "what about that",
		Messages:  []domain.Message{{Role: "user", Content: "tell me about foxes"}},
		UserDocs:  []domain.Document{{ID: "d1"}},
	}
	judge := o.DetectFollowUp(context.Background(), state)
	assert.True(t, judge.IsFollowUp)
}

func TestDetectFollowUpLongQueryIsNotFollowUp(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{
		UserQuery: "can you give me a very long and detailed explanation of how photosynthesis works in plants",
	}
	judge := o.DetectFollowUp(context.Background(), state)
	assert.False(t, judge.IsFollowUp)
}

func TestBuildPlanDeepSearchToggleAlwaysWins(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{
		UserQuery: "anything",
		Hints:     domain.ChatHints{DeepSearch: true},
	}
	plan := o.BuildPlan(context.Background(), state)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, domain.RouteDeepResearch, plan.Steps[0].Route)
}

func TestBuildPlanFallsBackToSimpleLLMWhenAnalyzerUnavailable(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{UserQuery: "what is the capital of France"}
	plan := o.BuildPlan(context.Background(), state)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, domain.RouteSimpleLLM, plan.Steps[0].Route)
}

func TestBuildPlanUploadedDocForcesRetrievalFirst(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{
		UserQuery: "summarize this",
		UserDocs:  []domain.Document{{ID: "d1"}},
		Hints:     domain.ChatHints{UploadedDoc: true},
	}
	plan := o.BuildPlan(context.Background(), state)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, domain.RouteRAG, plan.Steps[0].Route)
	assert.Equal(t, domain.RouteRAG, state.Route)
}

func TestForceRetrievalFirstPrependsWhenFirstStepIsNotRetrieval(t *testing.T) {
	routes := forceRetrievalFirst([]domain.Route{domain.RouteWebSearch, domain.RouteImage})
	require.Len(t, routes, 3)
	assert.Equal(t, domain.RouteRAG, routes[0])
}

func TestForceRetrievalFirstLeavesRetrievalFirstPlanAlone(t *testing.T) {
	routes := forceRetrievalFirst([]domain.Route{domain.RouteRAG, domain.RouteWebSearch})
	assert.Equal(t, []domain.Route{domain.RouteRAG, domain.RouteWebSearch}, routes)
}

func TestRewriteQueryReturnsOriginalForFirstStep(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{
		UserQuery: "original",
		Context: domain.ConversationContext{
			Plan: &domain.TaskPlan{Steps: []domain.PlanStep{
				{Route: domain.RouteRAG, SubQuery: "original"},
				{Route: domain.RouteWebSearch, SubQuery: "original"},
			}},
		},
	}
	assert.Equal(t, "original", o.RewriteQuery(context.Background(), state, 0))
}

func TestRewriteQueryFallsBackWithoutPriorResult(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{
		UserQuery: "original",
		Context: domain.ConversationContext{
			StepResults: map[string]string{},
			Plan: &domain.TaskPlan{Steps: []domain.PlanStep{
				{Route: domain.RouteRAG, SubQuery: "original"},
				{Route: domain.RouteWebSearch, SubQuery: "original"},
			}},
		},
	}
	assert.Equal(t, "original", o.RewriteQuery(context.Background(), state, 1))
}

func TestSummarizeNoOpBelowWindow(t *testing.T) {
	o := New(nil, nil)
	state := &domain.GraphState{Messages: []domain.Message{{Role: "user", Content: "hi"}}}
	require.NoError(t, o.Summarize(context.Background(), state))
	assert.Empty(t, state.Context.Summary)
}
