// Package deepresearch is C5: an iterative plan/execute/analyze/synthesize
// loop that decomposes a complex query into sub-questions, researches each
// via web search, judges whether the findings are sufficient, and either
// loops with follow-up questions or synthesizes a final report. Grounded on
// the original backend's DeepResearch/deepresearch.py, adapted to
// SPEC_FULL.md's tightened bounds (5 iterations, >15-char follow-up filter).
package deepresearch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/llmclient"
	"dev.helix.agent/internal/logging"
	"dev.helix.agent/internal/nodes"
	"dev.helix.agent/internal/streamsink"
)

// maxIterations overrides deepresearch.py's default of 3 per SPEC_FULL.md.
const maxIterations = 5

// earlyStopConfidence stops the loop once gap analysis reports this
// confidence or higher, mirroring the original's 0.85 threshold.
const earlyStopConfidence = 0.85

// maxSubQuestions and maxFollowUps cap fan-out per iteration.
const (
	maxSubQuestions     = 5
	maxFollowUps        = 3
	findingPreviewLen   = 300
	synthesisFindingLen = 600
	maxSources          = 10
	followUpMinLen      = 15 // tightened from the original's >10
	subQuestionMinLen   = 15 // spec.md §4.5 Plan: drop lines shorter than this
)

// Subgraph is C5.
type Subgraph struct {
	llm    *llmclient.Client
	search nodes.WebSearchClient
	logger *logrus.Logger
}

// New builds the deep-research subgraph.
func New(llm *llmclient.Client, search nodes.WebSearchClient, logger *logrus.Logger) *Subgraph {
	return &Subgraph{llm: llm, search: search, logger: logging.OrDefault(logger)}
}

func (s *Subgraph) Route() domain.Route { return domain.RouteDeepResearch }

// Run executes the full plan/execute/analyze/synthesize loop and returns
// the final report text.
func (s *Subgraph) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	research := &domain.ResearchState{
		OriginalQuery: query,
		MaxIterations: maxIterations,
	}
	state.Context.ResearchState = research

	if sink != nil {
		sink.Status(string(domain.RouteDeepResearch), "planning", "Breaking the query into sub-questions", 0.1)
	}

	subQuestions, err := s.planResearch(ctx, state, query)
	if err != nil {
		return "", err
	}
	if len(subQuestions) == 0 {
		return "Unable to plan research for this query. Try rephrasing it with more specifics.", nil
	}
	research.SubQuestions = subQuestions

	queries := subQuestions
	for research.Iteration < research.MaxIterations {
		if len(queries) == 0 {
			break
		}
		if sink != nil {
			progress := 0.1 + 0.6*float64(research.Iteration+1)/float64(research.MaxIterations)
			sink.Status(string(domain.RouteDeepResearch), "researching",
				fmt.Sprintf("Iteration %d/%d", research.Iteration+1, research.MaxIterations), progress)
		}

		findings := s.executeIteration(ctx, queries, research.Iteration)
		research.Findings = append(research.Findings, findings...)
		research.Iteration++

		if research.Iteration >= research.MaxIterations {
			break
		}

		confidence, gaps, followUps, err := s.analyzeGaps(ctx, state, research)
		if err != nil {
			s.logger.WithError(err).Warn("gap analysis failed, stopping iteration early")
			break
		}
		research.Confidence = confidence
		research.KnowledgeGaps = gaps
		research.FollowUpQueries = followUps

		if confidence >= earlyStopConfidence {
			s.logger.WithField("confidence", confidence).Debug("deep research stopping early on high confidence")
			break
		}
		if len(followUps) == 0 {
			break
		}
		queries = followUps
	}

	if sink != nil {
		sink.Status(string(domain.RouteDeepResearch), "synthesizing", "Writing the final report", 0.9)
	}
	return s.synthesizeReport(ctx, state, research)
}

// planResearch breaks the complex query into up to maxSubQuestions
// sub-questions, grounded on plan_research's numbered-list parsing.
func (s *Subgraph) planResearch(ctx context.Context, state *domain.GraphState, query string) ([]string, error) {
	prompt := "Break this complex query into 3-10 specific sub-questions covering core concepts, " +
		"current developments, key challenges, and practical implications. " +
		"Provide each sub-question on its own numbered line.\n\nQuery: " + query
	response, err := s.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	return dropShortLines(parseListLines(response, maxSubQuestions), subQuestionMinLen), nil
}

// dropShortLines filters out lines too short to be a real sub-question,
// per spec.md §4.5's Plan step ("strip numbering; drop lines shorter than
// 15 characters").
func dropShortLines(lines []string, minLen int) []string {
	var out []string
	for _, line := range lines {
		if len(line) >= minLen {
			out = append(out, line)
		}
	}
	return out
}

// executeIteration researches every query in this round via web search.
// Document/KB retrieval isn't wired here: deep research is reserved for
// open-ended external questions, and RAG is handled as its own route per
// SPEC_FULL.md's routing model rather than folded into this loop.
func (s *Subgraph) executeIteration(ctx context.Context, queries []string, iteration int) []domain.Finding {
	var findings []domain.Finding
	for _, q := range queries {
		results, err := s.search.Search(ctx, q, 3, "advanced")
		if err != nil {
			s.logger.WithError(err).WithField("query", q).Debug("deep research web search failed")
			continue
		}
		if len(results) == 0 {
			continue
		}

		var content strings.Builder
		var sources []string
		for _, r := range results {
			snippet := r.Snippet
			if len(snippet) > findingPreviewLen {
				snippet = snippet[:findingPreviewLen]
			}
			content.WriteString(r.Title + ": " + snippet + "\n")
			sources = append(sources, r.URL)
		}

		findings = append(findings, domain.Finding{
			Query:   q,
			Content: content.String(),
			Sources: sources,
		})
	}
	return findings
}

// analyzeGaps judges whether the gathered findings answer the original
// query, grounded on analyze_gaps's CONFIDENCE/GAPS/FOLLOW_UP format.
func (s *Subgraph) analyzeGaps(ctx context.Context, state *domain.GraphState, research *domain.ResearchState) (float64, []string, []string, error) {
	var summary strings.Builder
	start := 0
	if len(research.Findings) > 10 {
		start = len(research.Findings) - 10
	}
	for _, f := range research.Findings[start:] {
		preview := f.Content
		if len(preview) > findingPreviewLen {
			preview = preview[:findingPreviewLen] + "..."
		}
		summary.WriteString(f.Query + ": " + preview + "\n\n")
	}

	prompt := fmt.Sprintf(`Original query: %s

Gathered information (iteration %d/%d):
%s

Assess whether this is enough to answer the original query comprehensively.
Respond EXACTLY in this format:
CONFIDENCE: [0.0-1.0]
GAPS: [one gap per line, or "None"]
FOLLOW_UP: [one follow-up question per line, or "None"]`,
		research.OriginalQuery, research.Iteration, research.MaxIterations, summary.String())

	response, err := s.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return 0.5, nil, nil, err
	}

	confidence := parseConfidence(response)
	gaps := parseSection(response, "GAPS:", "FOLLOW_UP:")
	followUps := filterFollowUps(parseSection(response, "FOLLOW_UP:", ""), maxFollowUps)
	return confidence, gaps, followUps, nil
}

// synthesizeReport combines every finding across all iterations into the
// final report, appending a deduplicated sources list.
func (s *Subgraph) synthesizeReport(ctx context.Context, state *domain.GraphState, research *domain.ResearchState) (string, error) {
	var allInfo strings.Builder
	for _, f := range research.Findings {
		content := f.Content
		if len(content) > synthesisFindingLen {
			content = content[:synthesisFindingLen]
		}
		allInfo.WriteString("Query: " + f.Query + "\nFindings: " + content + "\n\n")
	}

	sources := dedupeSources(research.Findings, maxSources)
	sourcesText := "None"
	if len(sources) > 0 {
		sourcesText = "- " + strings.Join(sources, "\n- ")
	}

	prompt := fmt.Sprintf(`Original query: %s

All gathered information across %d iterations:
%s

Sources used:
%s

Write a comprehensive, well-structured report that directly answers the original query,
integrates information across sources, uses clear headings, cites sources where
appropriate, and acknowledges limitations.`,
		research.OriginalQuery, research.Iteration, allInfo.String(), sourcesText)

	report, err := s.llm.Complete(ctx, llmclient.ChatRequest{
		Model:    state.Config.Model,
		Messages: []llmclient.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	if !strings.Contains(strings.ToLower(report), "sources") && len(sources) > 0 {
		var appendix strings.Builder
		appendix.WriteString("\n\n## Sources Used\n")
		for i, url := range sources {
			appendix.WriteString(strconv.Itoa(i+1) + ". " + url + "\n")
		}
		report += appendix.String()
	}
	return report, nil
}

func dedupeSources(findings []domain.Finding, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range findings {
		for _, url := range f.Sources {
			if url == "" || seen[url] {
				continue
			}
			seen[url] = true
			out = append(out, url)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// parseListLines extracts numbered/bulleted lines from an LLM response,
// grounded on plan_research's line-by-line cleanup.
func parseListLines(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !(isDigit(line[0]) || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•")) {
			continue
		}
		cleaned := strings.TrimLeft(line, "0123456789.-•) ")
		cleaned = strings.TrimSpace(cleaned)
		if cleaned != "" {
			out = append(out, cleaned)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func parseConfidence(text string) float64 {
	idx := strings.Index(text, "CONFIDENCE:")
	if idx == -1 {
		return 0.5
	}
	rest := text[idx+len("CONFIDENCE:"):]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		rest = rest[:nl]
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0.5
	}
	return value
}

// parseSection extracts the text between a start marker and an optional
// end marker, splitting it into non-empty lines and dropping "None".
func parseSection(text, startMarker, endMarker string) []string {
	idx := strings.Index(text, startMarker)
	if idx == -1 {
		return nil
	}
	section := text[idx+len(startMarker):]
	if endMarker != "" {
		if end := strings.Index(section, endMarker); end != -1 {
			section = section[:end]
		}
	}
	section = strings.TrimSpace(section)
	if section == "" || strings.Contains(strings.ToLower(section), "none") {
		return nil
	}

	var out []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// filterFollowUps keeps only substantive follow-up questions, per
// spec.md §4.5's Analyze-gaps filter: longer than 15 characters and
// actually phrased as a question.
func filterFollowUps(questions []string, limit int) []string {
	var out []string
	for _, q := range questions {
		if len(q) > followUpMinLen && strings.Contains(q, "?") {
			out = append(out, q)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}
