// Package graph is C8, the graph runtime: a node registry plus the
// conditional-edge execution loop that walks a GraphState through either
// a single route or a multi-step orchestrator plan. Concurrency and
// per-step deadlines follow Planning/planning/hiplan.go's ExecutePlan —
// context.WithTimeout per unit of work, no shared mutable state between
// steps beyond the typed GraphState itself.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/logging"
	"dev.helix.agent/internal/orchestrator"
	"dev.helix.agent/internal/streamsink"
	"dev.helix.agent/internal/telemetry"
)

// Node is one capability in the graph: simple LLM, RAG, web search,
// deep research, image, or tool. Each node receives the (possibly
// rewritten) sub-query for the step it's running and returns its answer.
type Node interface {
	Route() domain.Route
	Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error)
}

// StepTimeout bounds any single node invocation, matching spec.md §5's
// per-operation deadline default.
const StepTimeout = 30 * time.Second

// Runtime holds the registered nodes and executes a GraphState's route
// or plan to completion.
type Runtime struct {
	nodes   map[domain.Route]Node
	logger  *logrus.Logger
	metrics *telemetry.Metrics
	orch    *orchestrator.Orchestrator
}

// New builds an empty runtime; call Register for each node before Execute.
func New(logger *logrus.Logger) *Runtime {
	return &Runtime{nodes: make(map[domain.Route]Node), logger: logging.OrDefault(logger)}
}

// Register adds a node to the registry, keyed by the route it serves.
func (r *Runtime) Register(node Node) {
	r.nodes[node.Route()] = node
}

// WithMetrics attaches a telemetry.Metrics collector; every node
// invocation then records its outcome and duration. Omitting this call
// leaves metrics entirely disabled, no-cost, for tests and callers that
// don't need them.
func (r *Runtime) WithMetrics(metrics *telemetry.Metrics) *Runtime {
	r.metrics = metrics
	return r
}

// WithOrchestrator attaches the orchestrator that rewrites each plan
// step's sub-query (step ≥ 2) against the previous step's actual result.
// Omitting this call leaves every step's SubQuery untouched.
func (r *Runtime) WithOrchestrator(orch *orchestrator.Orchestrator) *Runtime {
	r.orch = orch
	return r
}

func (r *Runtime) recordNode(route domain.Route, outcome string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordNode(string(route), outcome, time.Since(start).Seconds())
}

// Execute runs state.Context.Plan if one is present (the orchestrator's
// multi-step path), otherwise runs the single state.Route directly. It
// recovers any node panic into an Internal error, the runtime's
// last-resort safety net, and honors ctx cancellation between steps.
func (r *Runtime) Execute(ctx context.Context, state *domain.GraphState, sink streamsink.Sink) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = apperr.New(apperr.KindInternal, fmt.Sprintf("node panic: %v", rec))
			if sink != nil {
				sink.Error(err)
			}
		}
	}()

	if state.Context.Plan != nil && len(state.Context.Plan.Steps) > 0 {
		return r.executePlan(ctx, state, sink)
	}
	return r.executeSingle(ctx, state, sink)
}

func (r *Runtime) executeSingle(ctx context.Context, state *domain.GraphState, sink streamsink.Sink) error {
	node, ok := r.nodes[state.Route]
	if !ok {
		err := apperr.New(apperr.KindInputInvalid, "no node registered for route "+string(state.Route))
		if sink != nil {
			sink.Error(err)
		}
		return err
	}

	stepCtx, cancel := context.WithTimeout(ctx, StepTimeout)
	defer cancel()

	if sink != nil {
		sink.Status(string(state.Route), "processing", "Starting "+string(state.Route), 0)
	}

	start := time.Now()
	response, err := node.Run(stepCtx, state, state.UserQuery, sink)
	if err != nil {
		r.recordNode(state.Route, "error", start)
		if ctx.Err() != nil {
			err = apperr.Wrap(apperr.KindCancelled, "request cancelled", err)
		}
		if sink != nil {
			sink.Error(err)
		}
		return err
	}
	r.recordNode(state.Route, "ok", start)

	state.Response = response
	state.Context.LastRoute = state.Route
	return nil
}

// executePlan runs every step of an orchestrator-built plan in order,
// threading each step's result into Context.StepResults, then either
// concatenates or synthesizes depending on Plan.Synthesize (the open
// question resolved in SPEC_FULL.md §9).
func (r *Runtime) executePlan(ctx context.Context, state *domain.GraphState, sink streamsink.Sink) error {
	plan := state.Context.Plan
	if state.Context.StepResults == nil {
		state.Context.StepResults = make(map[string]string)
	}

	for !plan.Done() {
		if ctx.Err() != nil {
			err := apperr.Wrap(apperr.KindCancelled, "plan execution cancelled", ctx.Err())
			if sink != nil {
				sink.Error(err)
			}
			return err
		}

		step := plan.Current()
		node, ok := r.nodes[step.Route]
		if !ok {
			plan.Advance()
			continue
		}

		// Steps beyond the first are rewritten against the previous
		// step's actual result, per spec.md §4.7's step-wise query
		// rewriting; RewriteQuery falls back to the original user query
		// when there's no prior result or this is the first step, and
		// step.SubQuery is used as-is when no orchestrator is attached.
		subQuery := step.SubQuery
		if r.orch != nil {
			subQuery = r.orch.RewriteQuery(ctx, state, plan.CurrentIndex)
		}

		stepCtx, cancel := context.WithTimeout(ctx, StepTimeout)
		if sink != nil {
			sink.Status(string(step.Route), "processing", "Running step: "+string(step.Route), stepProgress(plan))
		}
		start := time.Now()
		result, err := node.Run(stepCtx, state, subQuery, sink)
		cancel()
		if err != nil {
			r.recordNode(step.Route, "error", start)
			if sink != nil {
				sink.Error(err)
			}
			return err
		}
		r.recordNode(step.Route, "ok", start)

		state.Context.StepResults[string(step.Route)] = result
		if sink != nil {
			// One completion frame per step, empty content, before
			// advancing — spec.md §4.9's per-node frame-ordering
			// invariant for plans of length n.
			sink.Content(string(step.Route), "", result, true)
		}
		plan.Advance()
	}

	state.Response = assemblePlanResponse(plan, state.Context.StepResults)
	state.Context.LastRoute = lastStepRoute(plan)
	return nil
}

func stepProgress(plan *domain.TaskPlan) float64 {
	if len(plan.Steps) == 0 {
		return 1
	}
	return float64(plan.CurrentIndex) / float64(len(plan.Steps))
}

func lastStepRoute(plan *domain.TaskPlan) domain.Route {
	if len(plan.Steps) == 0 {
		return ""
	}
	return plan.Steps[len(plan.Steps)-1].Route
}

// assemblePlanResponse concatenates step results in order, formatted as
// "**<node> Result:**\n<output>" blocks, matching spec.md §4.7 step 3.
// When Plan.Synthesize is set and StepResults already holds a
// "__synthesized__" entry, that entry is returned instead. The HTTP
// handler runs orchestrator.Synthesize after Execute returns, and that
// call replaces state.Response with the synthesized answer.
func assemblePlanResponse(plan *domain.TaskPlan, results map[string]string) string {
	if plan.Synthesize {
		if synthesized, ok := results["__synthesized__"]; ok {
			return synthesized
		}
	}
	out := ""
	for _, step := range plan.Steps {
		result, ok := results[string(step.Route)]
		if !ok {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += fmt.Sprintf("**%s Result:**\n%s", step.Route, result)
	}
	return out
}
