// Package orchestrator is C7: it detects whether a turn follows up on the
// prior one, decides which capability (or ordered sequence of
// capabilities) the turn needs, rewrites sub-queries per step, and
// maintains a rolling conversation summary. Grounded on the original
// backend's Orchestrator.py (is_followup/analyze_query/routing) and
// internal/conversation/context_compressor.go (rolling summary strategy,
// simplified here to a single window-based strategy — see DESIGN.md).
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/llmclient"
	"dev.helix.agent/internal/llmjson"
	"dev.helix.agent/internal/logging"
)

// summaryWindowSize mirrors spec.md §4.7 step 1's keep_last default of 3:
// messages older than this are folded into the rolling summary instead of
// resent verbatim on every turn.
const summaryWindowSize = 3

// Orchestrator is C7.
type Orchestrator struct {
	llm    *llmclient.Client
	logger *logrus.Logger
}

// New builds the orchestrator.
func New(llm *llmclient.Client, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{llm: llm, logger: logging.OrDefault(logger)}
}

type followUpJudgment struct {
	IsFollowUp   bool    `json:"is_followup"`
	ShouldUseRAG bool    `json:"should_use_rag"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale"`
}

// DetectFollowUp mirrors Orchestrator.py's is_folloup: an LLM judge decides
// whether the new message is a follow-up in the same thread that should
// keep using the same sources, with a heuristic fallback (short query +
// any doc/KB scope populated) when the judge doesn't return valid JSON.
// This signal is advisory only per SPEC_FULL.md §9 — it never branches
// control flow on its own.
func (o *Orchestrator) DetectFollowUp(ctx context.Context, state *domain.GraphState) domain.FollowUpJudgment {
	heuristic := func(rationale string) domain.FollowUpJudgment {
		wordCount := len(strings.Fields(state.UserQuery))
		return domain.FollowUpJudgment{
			IsFollowUp:   wordCount < 8 && (state.HasUserDocs() || state.HasKB()),
			ShouldUseRAG: state.HasUserDocs() || state.HasKB(),
			Confidence:   0.4,
			Rationale:    rationale,
		}
	}

	if o.llm == nil {
		return heuristic("Fallback heuristic because LLM did not return valid JSON.")
	}

	var turns strings.Builder
	for _, m := range lastMessages(state.Messages, 12) {
		prefix := "Assistant"
		if m.Role == "user" || m.Role == "human" {
			prefix = "User"
		}
		fmt.Fprintf(&turns, "%s: %s\n", prefix, m.Content)
	}

	prompt := fmt.Sprintf(
		"You are a routing judge. Decide if the NEW user message is a follow-up in the same "+
			"thread that should keep using the same sources (uploaded documents and/or knowledge "+
			"base). Consider the conversation and the presence of docs/KB in the session.\n\n"+
			"Docs present: %v | KB present: %v\n"+
			"Conversation (oldest first):\n%s\n"+
			"NEW user message: %s\n\n"+
			"Respond with a single JSON object and nothing else: "+
			"{\"is_followup\": bool, \"should_use_rag\": bool, \"confidence\": 0..1, \"rationale\": \"short string\"}",
		state.HasUserDocs(), state.HasKB(), turns.String(), state.UserQuery)

	response, err := o.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return heuristic("Fallback heuristic because LLM did not return valid JSON.")
	}

	var judged followUpJudgment
	if err := llmjson.Extract(response, &judged); err != nil {
		return heuristic("Fallback heuristic because LLM did not return valid JSON.")
	}

	return domain.FollowUpJudgment{
		IsFollowUp:   judged.IsFollowUp,
		ShouldUseRAG: judged.ShouldUseRAG,
		Confidence:   judged.Confidence,
		Rationale:    judged.Rationale,
	}
}

func lastMessages(messages []domain.Message, n int) []domain.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// knownRoutes is the set of node names the query analyzer is allowed to
// return, matching domain's Route constants' wire strings exactly.
var knownRoutes = map[string]domain.Route{
	string(domain.RouteSimpleLLM):    domain.RouteSimpleLLM,
	string(domain.RouteRAG):          domain.RouteRAG,
	string(domain.RouteWebSearch):    domain.RouteWebSearch,
	string(domain.RouteDeepResearch): domain.RouteDeepResearch,
	string(domain.RouteImage):        domain.RouteImage,
	string(domain.RouteTool):         domain.RouteTool,
}

type executionOrderResponse struct {
	ExecutionOrder []string `json:"execution_order"`
}

// analyzeExecutionOrder is the LLM query-analyzer from spec.md §4.7 step
// 3: it returns the ordered sequence of capability nodes this turn needs.
// A nil return means the analyzer failed to produce usable JSON; the
// caller's documented fallback is plan = [SimpleLLM].
func (o *Orchestrator) analyzeExecutionOrder(ctx context.Context, state *domain.GraphState) []domain.Route {
	if o.llm == nil {
		return nil
	}

	prompt := fmt.Sprintf(
		"You are a query-routing analyzer. Decide the ordered sequence of capabilities needed "+
			"to answer this query. Available capabilities: simple_llm, rag, web_search, "+
			"deep_research, image, tool. Most turns need exactly one; only chain more than one "+
			"when the query genuinely needs multiple capabilities in sequence (e.g. \"look up my "+
			"notes on X and also check the web for the latest on X\").\n\n"+
			"User query: %q\n"+
			"Uploaded documents available: %v\n"+
			"Knowledge base available: %v\n"+
			"Web search requested: %v\n"+
			"RAG requested: %v\n"+
			"Tool schema configured: %v\n\n"+
			"Respond with a single JSON object and nothing else: "+
			"{\"execution_order\": [\"simple_llm\"]}",
		state.UserQuery, state.HasUserDocs(), state.HasKB(),
		state.Hints.WebSearch, state.Hints.RAG, state.Config.MCPSchema != "")

	response, err := o.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil
	}

	var decoded executionOrderResponse
	if err := llmjson.Extract(response, &decoded); err != nil || len(decoded.ExecutionOrder) == 0 {
		return nil
	}

	var order []domain.Route
	for _, name := range decoded.ExecutionOrder {
		route, ok := knownRoutes[strings.TrimSpace(name)]
		if !ok {
			o.logger.WithField("node", name).Warn("query analyzer returned unknown node name, dropping")
			continue
		}
		order = append(order, route)
	}
	return order
}

// BuildPlan decides the ordered sequence of capabilities this turn needs.
// Sub-queries are rewritten lazily at execution time (see RewriteQuery)
// since step ≥ 2 rewriting depends on the previous step's actual result,
// which doesn't exist yet at plan-build time.
func (o *Orchestrator) BuildPlan(ctx context.Context, state *domain.GraphState) *domain.TaskPlan {
	followUp := o.DetectFollowUp(ctx, state)
	state.Context.FollowUpJudge = followUp

	var routes []domain.Route
	switch {
	case state.Hints.DeepSearch:
		// An explicit deep_search toggle always wins, matching spec.md
		// §4.7 step 3's "deep_search toggle is on → plan = [deepResearch]".
		routes = []domain.Route{domain.RouteDeepResearch}
	default:
		routes = o.analyzeExecutionOrder(ctx, state)
		if routes == nil {
			// Analyzer ParseFailure: documented fallback is [SimpleLLM].
			routes = []domain.Route{domain.RouteSimpleLLM}
		}
		if state.Hints.UploadedDoc {
			routes = forceRetrievalFirst(routes)
		}
	}

	steps := make([]domain.PlanStep, len(routes))
	for i, route := range routes {
		steps[i] = domain.PlanStep{Route: route, SubQuery: state.UserQuery}
	}

	// Single-step plans are never synthesized. A multi-step plan follows the
	// session's own preference, except that a retrieval or deep-research
	// step forces synthesis, matching SPEC_FULL.md §9 decision 1.
	synthesize := false
	if len(steps) > 1 {
		synthesize = state.Config.SynthesizeOnMultiStep
		for _, s := range steps {
			if s.Route == domain.RouteRAG || s.Route == domain.RouteDeepResearch {
				synthesize = true
			}
		}
	}

	plan := &domain.TaskPlan{Steps: steps, Synthesize: synthesize}
	state.Context.Plan = plan
	state.Route = steps[0].Route
	return plan
}

// forceRetrievalFirst implements spec.md §4.7's upload-forcing rule: a
// just-uploaded document must be searched first, and a single-step plan
// that isn't already retrieval is dropped entirely in favor of it.
func forceRetrievalFirst(routes []domain.Route) []domain.Route {
	if len(routes) <= 1 {
		return []domain.Route{domain.RouteRAG}
	}
	if routes[0] == domain.RouteRAG {
		return routes
	}
	return append([]domain.Route{domain.RouteRAG}, routes...)
}

// RewriteQuery rewrites the sub-query for plan step stepIndex (0-based),
// per spec.md §4.7's step-wise query rewriting: for step ≥ 2 of a
// multi-step plan, a fast LLM call incorporates the original goal, the
// full plan, the current task, and only the most recent intermediate
// result. Falls back to the original user query on any failure, including
// when there's no orchestrator LLM, no plan, or this is the first step.
func (o *Orchestrator) RewriteQuery(ctx context.Context, state *domain.GraphState, stepIndex int) string {
	plan := state.Context.Plan
	if o.llm == nil || plan == nil || stepIndex <= 0 || stepIndex >= len(plan.Steps) {
		return state.UserQuery
	}

	current := plan.Steps[stepIndex]
	prevRoute := plan.Steps[stepIndex-1].Route
	prevResult := state.Context.StepResults[string(prevRoute)]
	if prevResult == "" {
		return state.UserQuery
	}

	var planDesc strings.Builder
	for i, s := range plan.Steps {
		fmt.Fprintf(&planDesc, "%d. %s\n", i+1, s.Route)
	}

	prompt := fmt.Sprintf(
		"Original user goal: %s\n\nFull plan:\n%s\nCurrent task: %s\n\n"+
			"Most recent step result:\n%s\n\n"+
			"Rewrite the query for the current task so it incorporates the most recent result. "+
			"Output only the rewritten query, nothing else.",
		state.UserQuery, planDesc.String(), current.Route, prevResult)

	rewritten, err := o.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil || strings.TrimSpace(rewritten) == "" {
		o.logger.WithError(err).Debug("step query rewrite failed, falling back to original query")
		return state.UserQuery
	}
	return strings.TrimSpace(rewritten)
}

// Synthesize issues one additional completion that reconciles every
// step's result into a single coherent answer, writing it to
// StepResults["__synthesized__"] and to state.Response, replacing the
// concatenation the graph runtime assembled.
func (o *Orchestrator) Synthesize(ctx context.Context, state *domain.GraphState) error {
	plan := state.Context.Plan
	if plan == nil || !plan.Synthesize {
		return nil
	}

	var combined strings.Builder
	for _, step := range plan.Steps {
		result, ok := state.Context.StepResults[string(step.Route)]
		if !ok {
			continue
		}
		combined.WriteString("### " + string(step.Route) + "\n" + result + "\n\n")
	}

	prompt := "Combine the following step results into a single, coherent answer to " +
		"the user's original question \"" + state.UserQuery + "\". Do not repeat section headers.\n\n" + combined.String()

	response, err := o.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		// Synthesis failing isn't fatal: state.Response keeps the
		// concatenation the runtime already assembled.
		o.logger.WithError(err).Warn("plan synthesis failed, falling back to concatenation")
		return nil
	}

	state.Context.StepResults["__synthesized__"] = response
	state.Response = response
	return nil
}

// Summarize folds messages older than the trailing window into a
// rolling summary so long conversations don't resend every turn's full
// text on every request.
func (o *Orchestrator) Summarize(ctx context.Context, state *domain.GraphState) error {
	if len(state.Messages) <= summaryWindowSize {
		return nil
	}

	toFold := state.Messages[:len(state.Messages)-summaryWindowSize]
	var transcript strings.Builder
	for _, m := range toFold {
		transcript.WriteString(m.Role + ": " + m.Content + "\n")
	}

	prompt := "Summarize this conversation excerpt in 2-3 sentences, preserving any " +
		"concrete facts, names, or decisions:\n\n" + transcript.String()
	if state.Context.Summary != "" {
		prompt = "Existing summary: " + state.Context.Summary + "\n\n" + prompt
	}

	summary, err := o.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		o.logger.WithError(err).Debug("rolling summary update failed, keeping prior summary")
		return nil
	}

	state.Context.Summary = summary
	state.Messages = state.Messages[len(toFold):]
	return nil
}
