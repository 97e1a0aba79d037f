// Package domain holds the typed state that flows through the graph
// runtime: sessions, documents, conversation turns, and the per-turn
// GraphState that nodes read and write.
package domain

import "time"

// Route names the capability a node (or the orchestrator's plan) selects.
// Kept as a closed enum rather than a free-form string so routing mistakes
// fail at compile time instead of surfacing as a silently-ignored string.
type Route string

const (
	RouteSimpleLLM    Route = "simple_llm"
	RouteRAG          Route = "rag"
	RouteWebSearch    Route = "web_search"
	RouteDeepResearch Route = "deep_research"
	RouteImage        Route = "image"
	RouteTool         Route = "tool"
)

// Message is a single conversation turn.
type Message struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Node      string    `json:"node,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is a single uploaded file, already extracted to plain text
// upstream of this system (binary extraction is an external collaborator).
type Document struct {
	ID       string            `json:"id"`
	Filename string            `json:"filename"`
	FileType string            `json:"file_type"`
	Content  string            `json:"content"`
	DocType  DocumentScope     `json:"doc_type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DocumentScope distinguishes a session's user-uploaded documents from its
// curated knowledge base; each scope gets its own retrieval collection.
type DocumentScope string

const (
	ScopeUserDocs DocumentScope = "user_docs"
	ScopeKB       DocumentScope = "kb"
)

// GPTConfig is the per-session tunable behavior: model choice, a custom
// system instruction, and the plan-termination toggle.
type GPTConfig struct {
	Model                 string `json:"model"`
	CustomInstruction     string `json:"custom_instruction,omitempty"`
	SynthesizeOnMultiStep bool   `json:"synthesize_on_multi_step"`
	MCPSchema             string `json:"mcp_schema,omitempty"`
}

// DefaultGPTConfig mirrors the model the original backend defaulted to.
func DefaultGPTConfig() GPTConfig {
	return GPTConfig{Model: "gpt-4o-mini"}
}

// FollowUpJudgment is the orchestrator's advisory, non-branching signal
// about whether the current turn continues the prior one.
type FollowUpJudgment struct {
	IsFollowUp   bool    `json:"is_followup"`
	ShouldUseRAG bool    `json:"should_use_rag"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale"`
}

// ConversationContext is the typed replacement for the duck-typed
// "extra state" bag the original graph threaded around as a dict. Every
// node that needs cross-step memory reads/writes a named field here
// instead of a map[string]interface{}.
type ConversationContext struct {
	Summary       string            `json:"summary,omitempty"`
	LastRoute     Route             `json:"last_route,omitempty"`
	FollowUpJudge FollowUpJudgment  `json:"follow_up_judge,omitempty"`
	Plan          *TaskPlan         `json:"plan,omitempty"`
	StepResults   map[string]string `json:"step_results,omitempty"`
	ResearchState *ResearchState    `json:"research_state,omitempty"`
}

// TaskPlan is the orchestrator's ordered execution plan: a sequence of
// routes, each carrying the sub-query rewritten for that step.
type TaskPlan struct {
	Steps        []PlanStep `json:"steps"`
	CurrentIndex int        `json:"current_index"`
	Synthesize   bool       `json:"synthesize"`
}

// PlanStep is one node invocation within a TaskPlan.
type PlanStep struct {
	Route    Route  `json:"route"`
	SubQuery string `json:"sub_query"`
}

// Done reports whether every step in the plan has been executed.
func (p *TaskPlan) Done() bool {
	return p == nil || p.CurrentIndex >= len(p.Steps)
}

// Current returns the step about to run, or nil if the plan is exhausted.
func (p *TaskPlan) Current() *PlanStep {
	if p.Done() {
		return nil
	}
	return &p.Steps[p.CurrentIndex]
}

// Advance moves the plan cursor to the next step.
func (p *TaskPlan) Advance() {
	p.CurrentIndex++
}

// ResearchState tracks the deep-research subgraph's own loop state,
// distinct from the outer GraphState so the inner state machine can be
// reasoned about (and tested) independently of the outer graph.
type ResearchState struct {
	OriginalQuery   string    `json:"original_query"`
	SubQuestions    []string  `json:"sub_questions"`
	Findings        []Finding `json:"findings"`
	Iteration       int       `json:"iteration"`
	MaxIterations   int       `json:"max_iterations"`
	Confidence      float64   `json:"confidence"`
	KnowledgeGaps   []string  `json:"knowledge_gaps"`
	FollowUpQueries []string  `json:"follow_up_queries"`
}

// Finding is one completed research step's result.
type Finding struct {
	Query   string   `json:"query"`
	Content string   `json:"content"`
	Sources []string `json:"sources"`
}

// ChatHints are the per-turn capability toggles the chat/stream request
// carries explicitly, letting a client force a route instead of relying
// solely on the orchestrator's own detection.
type ChatHints struct {
	WebSearch   bool
	RAG         bool
	DeepSearch  bool
	UploadedDoc bool
	Hybrid      bool
}

// GraphState is the single typed object threaded through every node.
// It replaces the original dynamically-typed dict state entirely.
type GraphState struct {
	SessionID string              `json:"session_id"`
	UserQuery string              `json:"user_query"`
	Config    GPTConfig           `json:"config"`
	UserDocs  []Document          `json:"user_docs,omitempty"`
	KBDocs    []Document          `json:"kb_docs,omitempty"`
	Messages  []Message           `json:"messages"`
	Route     Route               `json:"route"`
	Response  string              `json:"response"`
	Context   ConversationContext `json:"context"`
	Hints     ChatHints           `json:"-"`
	Timestamp time.Time           `json:"timestamp"`
}

// HasUserDocs and HasKB are the two signals the orchestrator and
// retrieval node use to decide whether RAG is even viable.
func (s *GraphState) HasUserDocs() bool { return len(s.UserDocs) > 0 }
func (s *GraphState) HasKB() bool       { return len(s.KBDocs) > 0 }

// Session is the durable (process-lifetime) record behind a session id.
type Session struct {
	ID        string     `json:"id"`
	Config    GPTConfig  `json:"config"`
	Messages  []Message  `json:"messages"`
	UserDocs  []Document `json:"user_docs,omitempty"`
	KBDocs    []Document `json:"kb_docs,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
