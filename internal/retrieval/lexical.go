package retrieval

import (
	"math"
	"regexp"
	"strings"
)

// bm25K1 and bm25B are the standard Okapi BM25 tuning constants used by
// the original backend's rank_bm25.BM25Okapi usage.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopWords mirrors sklearn's ENGLISH_STOP_WORDS set, trimmed to the
// terms that actually matter for short query/document scoring.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true, "had": true,
	"what": true, "when": true, "where": true, "who": true, "which": true, "you": true,
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := tokenPattern.FindAllString(lower, -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if stopWords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// LexicalIndex is a from-scratch BM25 index scoped to one retrieval
// collection's chunks — see DESIGN.md for why this isn't a bleve index.
type LexicalIndex struct {
	docs      []Chunk
	tokens    [][]string
	docFreq   map[string]int
	avgDocLen float64
}

// NewLexicalIndex builds a BM25 index over chunks.
func NewLexicalIndex(chunks []Chunk) *LexicalIndex {
	idx := &LexicalIndex{
		docs:    chunks,
		tokens:  make([][]string, len(chunks)),
		docFreq: make(map[string]int),
	}
	totalLen := 0
	for i, c := range chunks {
		toks := tokenize(c.Content)
		idx.tokens[i] = toks
		totalLen += len(toks)
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				idx.docFreq[t]++
				seen[t] = true
			}
		}
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(chunks))
	}
	return idx
}

// ScoredChunk pairs a chunk with a retrieval score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Search returns the top-n chunks by BM25 score, with the dynamic noise
// floor the original backend applied: scores below
// max(0.2*maxScore, 0.5*meanScore, 0.1) are discarded as noise.
func (idx *LexicalIndex) Search(query string, n int) []ScoredChunk {
	qTokens := tokenize(query)
	if len(qTokens) == 0 || len(idx.docs) == 0 {
		return nil
	}

	scores := make([]float64, len(idx.docs))
	n_docs := float64(len(idx.docs))
	for i := range idx.docs {
		docLen := float64(len(idx.tokens[i]))
		var score float64
		for _, qt := range qTokens {
			freq := termFreq(idx.tokens[i], qt)
			if freq == 0 {
				continue
			}
			df := float64(idx.docFreq[qt])
			idf := math.Log(1 + (n_docs-df+0.5)/(df+0.5))
			numerator := freq * (bm25K1 + 1)
			denominator := freq + bm25K1*(1-bm25B+bm25B*docLen/maxf(idx.avgDocLen, 1))
			score += idf * numerator / denominator
		}
		scores[i] = score
	}

	return topNWithThreshold(idx.docs, scores, n)
}

func termFreq(tokens []string, term string) float64 {
	count := 0.0
	for _, t := range tokens {
		if t == term {
			count++
		}
	}
	return count
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// topNWithThreshold applies the dynamic noise threshold then returns the
// top n surviving chunks, sorted by score descending.
func topNWithThreshold(docs []Chunk, scores []float64, n int) []ScoredChunk {
	maxScore, sum, count := 0.0, 0.0, 0
	for _, s := range scores {
		if s > 0 {
			sum += s
			count++
			if s > maxScore {
				maxScore = s
			}
		}
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	threshold := maxf(maxf(0.2*maxScore, 0.5*mean), 0.1)

	scored := make([]ScoredChunk, 0, count)
	for i, s := range scores {
		if s >= threshold {
			scored = append(scored, ScoredChunk{Chunk: docs[i], Score: s})
		}
	}
	sortByScoreDesc(scored)
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

func sortByScoreDesc(s []ScoredChunk) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Score > s[j-1].Score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
