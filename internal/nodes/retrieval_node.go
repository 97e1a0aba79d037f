package nodes

import (
	"context"
	"fmt"
	"strings"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/llmclient"
	"dev.helix.agent/internal/llmjson"
	"dev.helix.agent/internal/retrieval"
	"dev.helix.agent/internal/streamsink"
)

// perSideTopK matches the original backend's _process_user_docs /
// _process_kb_docs limit of 6 chunks per source.
const perSideTopK = 6

// sourceDecision is the classifier's routing verdict, mirroring Rag.py's
// intelligent_source_selection return shape: which scopes to search, the
// named strategy, and why.
type sourceDecision struct {
	UseUserDocs    bool   `json:"use_user_docs"`
	UseKB          bool   `json:"use_kb"`
	SearchStrategy string `json:"search_strategy"`
	Reasoning      string `json:"reasoning"`
}

// classificationPrompt condenses Rag.py's intelligent_source_selection
// prompt: the same five ordered priority rules, the same state block, the
// same strict single-JSON-object contract.
func classificationPrompt(query string, justUploaded, hasKB bool, customInstruction string) string {
	if customInstruction == "" {
		customInstruction = "General assistant"
	}
	return fmt.Sprintf(`You are a precise routing agent. Decide which knowledge source answers this query.

User Query: %q
A document was just uploaded for this query: %v
Knowledge Base available: %v
Custom instructions: %q

Decision rules, in order:
1. If a document was just uploaded and the query is generic ("summarize this", "explain", "what are the key points?"), decide "user_docs_only".
2. If the query asks for a comparison, review, or validation and the custom instructions imply a standard to compare against, decide "both" (if the KB is available).
3. If the query asks for an explanation needing external domain knowledge the custom instructions say the KB holds, decide "both" (if the KB is available).
4. Otherwise, for any specific query, default to "user_docs_only" if user documents are available.
5. If no user documents are available, decide "kb_only" when the query is relevant to the KB, else "none".

Respond with a single JSON object and nothing else:
{"use_user_docs": true/false, "use_kb": true/false, "search_strategy": "user_docs_only"|"kb_only"|"both"|"none", "reasoning": "one sentence"}`,
		query, justUploaded, hasKB, customInstruction)
}

// classifySources asks the LLM which scopes to search, validates the
// answer against what's actually available, and falls back to the union
// of available sources (recording why in Reasoning) when the model
// doesn't return valid JSON — spec.md §4.3 step 1's ParseFailure contract.
func classifySources(ctx context.Context, llm *llmclient.Client, model, query string, hasUserDocs, hasKB, justUploaded bool, customInstruction string) sourceDecision {
	fallback := func(reason string) sourceDecision {
		d := sourceDecision{UseUserDocs: hasUserDocs, UseKB: hasKB, Reasoning: reason}
		switch {
		case hasUserDocs && hasKB:
			d.SearchStrategy = "both"
		case hasUserDocs:
			d.SearchStrategy = "user_docs_only"
		case hasKB:
			d.SearchStrategy = "kb_only"
		default:
			d.SearchStrategy = "none"
		}
		return d
	}

	if !hasUserDocs && !hasKB {
		return fallback("no sources available")
	}
	if llm == nil {
		return fallback("Fallback due to parsing error")
	}

	prompt := classificationPrompt(query, justUploaded, hasKB, customInstruction)
	response, err := llm.Complete(ctx, llmclient.ChatRequest{
		Model:    model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return fallback("Fallback due to parsing error")
	}

	var decision sourceDecision
	if err := llmjson.Extract(response, &decision); err != nil {
		return fallback("Fallback due to parsing error")
	}

	// The model cannot select a scope that doesn't exist, matching
	// Rag.py's post-classification "force False if not has_user_docs".
	if !hasUserDocs {
		decision.UseUserDocs = false
	}
	if !hasKB {
		decision.UseKB = false
	}
	return decision
}

// RetrievalNode is C3: classify which knowledge scopes apply, search each
// selected scope, and answer grounded in the retrieved context.
type RetrievalNode struct {
	index *retrieval.Index
	llm   *llmclient.Client
}

// NewRetrievalNode builds the RAG leaf node.
func NewRetrievalNode(index *retrieval.Index, llm *llmclient.Client) *RetrievalNode {
	return &RetrievalNode{index: index, llm: llm}
}

func (n *RetrievalNode) Route() domain.Route { return domain.RouteRAG }

func (n *RetrievalNode) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	decision := classifySources(ctx, n.llm, state.Config.Model, query,
		state.HasUserDocs(), state.HasKB(), state.Hints.UploadedDoc, state.Config.CustomInstruction)

	if !decision.UseUserDocs && !decision.UseKB {
		return "", apperr.New(apperr.KindRetrievalMiss, "source classifier selected no scope: "+decision.Reasoning)
	}

	// User-doc search is RRF-fused when hybrid retrieval is on, dense-only
	// otherwise; KB search is the reverse, intersection when hybrid, RRF
	// otherwise. Grounded on Rag.py's _process_user_docs/_process_kb_docs.
	userStrategy, kbStrategy := retrieval.StrategyDense, retrieval.StrategyRRF
	if state.Hints.Hybrid {
		userStrategy, kbStrategy = retrieval.StrategyRRF, retrieval.StrategyIntersection
	}

	var sections []string
	if decision.UseUserDocs {
		section, err := n.searchSection(ctx, retrieval.CollectionName("user_docs", state.SessionID), query, "Uploaded Documents", userStrategy)
		if err == nil {
			sections = append(sections, section)
		}
	}
	if decision.UseKB {
		section, err := n.searchSection(ctx, retrieval.CollectionName("kb", state.SessionID), query, "Knowledge Base", kbStrategy)
		if err == nil {
			sections = append(sections, section)
		}
	}

	if len(sections) == 0 {
		return "", apperr.New(apperr.KindRetrievalMiss, "retrieval produced no usable context")
	}

	prompt := buildRAGPrompt(strings.Join(sections, "\n\n"), state.Config.CustomInstruction)
	messages := historyMessages(state, query, prompt)

	var full strings.Builder
	err := n.llm.Stream(ctx, llmclient.ChatRequest{Model: state.Config.Model, Messages: messages}, func(c llmclient.Chunk) error {
		if c.Done {
			return nil
		}
		full.WriteString(c.Content)
		if sink != nil {
			sink.Content(string(domain.RouteRAG), c.Content, full.String(), false)
		}
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "rag completion failed", err)
	}
	return full.String(), nil
}

func (n *RetrievalNode) searchSection(ctx context.Context, collection, query, label string, strategy retrieval.SearchStrategy) (string, error) {
	ranked, err := n.index.Search(ctx, collection, query, perSideTopK, strategy)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", label)
	for _, r := range ranked {
		b.WriteString(r.Chunk.Content)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// buildRAGPrompt combines the base grounded-answer instruction with any
// session custom instruction, matching the original backend's system
// prompt assembly in Rag.py.
func buildRAGPrompt(context, customInstruction string) string {
	base := "You are a helpful assistant. Answer the user's question using only the " +
		"context below. If the context doesn't contain the answer, say so plainly " +
		"instead of guessing.\n\n" + context

	if customInstruction == "" {
		return base
	}
	return customInstruction + "\n\n" + base
}
