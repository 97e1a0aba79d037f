package retrieval

import "sort"

// FusionMethod mirrors the teacher adapter's fusion method constants
// (internal/adapters/rag/adapter.go: FusionRRF/FusionLinear).
type FusionMethod string

const (
	FusionRRF    FusionMethod = "rrf"
	FusionLinear FusionMethod = "linear"
)

// DefaultRRFK is the reciprocal-rank-fusion constant the original
// backend used (rank_bm25 + Qdrant fused with k=60).
const DefaultRRFK = 60

// Ranked is one fusion candidate: a chunk plus its fused score.
type Ranked struct {
	Chunk Chunk
	Score float64
}

// ReciprocalRankFusion combines two ranked lists (already sorted best
// first) by score(d) = sum over rankers r of 1/(k + rank_r(d)), with
// 1-indexed ranks and no score normalization, per spec.md §4.1.
func ReciprocalRankFusion(dense, lexical []ScoredChunk, k int) []Ranked {
	if k <= 0 {
		k = DefaultRRFK
	}
	scores := make(map[string]float64)
	chunks := make(map[string]Chunk)

	accumulate := func(list []ScoredChunk) {
		for rank, sc := range list {
			key := chunkKey(sc.Chunk)
			scores[key] += 1.0 / float64(k+rank+1)
			chunks[key] = sc.Chunk
		}
	}
	accumulate(dense)
	accumulate(lexical)

	out := make([]Ranked, 0, len(scores))
	for key, score := range scores {
		out = append(out, Ranked{Chunk: chunks[key], Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// LinearFusion combines two ranked lists with fixed weights (matching
// the teacher's NewLinearStrategy(0.6, 0.4) default).
func LinearFusion(dense, lexical []ScoredChunk, denseWeight, lexicalWeight float64) []Ranked {
	scores := make(map[string]float64)
	chunks := make(map[string]Chunk)

	for _, sc := range dense {
		key := chunkKey(sc.Chunk)
		scores[key] += denseWeight * sc.Score
		chunks[key] = sc.Chunk
	}
	for _, sc := range lexical {
		key := chunkKey(sc.Chunk)
		scores[key] += lexicalWeight * sc.Score
		chunks[key] = sc.Chunk
	}

	out := make([]Ranked, 0, len(scores))
	for key, score := range scores {
		out = append(out, Ranked{Chunk: chunks[key], Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// IntersectOrUnion implements the hybrid-intersection strategy: return
// chunks found by both sides' top candidates; if that set is smaller
// than limit, fall back to the union, still ranked by fused score.
func IntersectOrUnion(dense, lexical []ScoredChunk, limit int) []Ranked {
	denseKeys := make(map[string]bool, len(dense))
	for _, sc := range dense {
		denseKeys[chunkKey(sc.Chunk)] = true
	}
	lexicalKeys := make(map[string]bool, len(lexical))
	for _, sc := range lexical {
		lexicalKeys[chunkKey(sc.Chunk)] = true
	}

	fused := ReciprocalRankFusion(dense, lexical, DefaultRRFK)
	var intersection []Ranked
	for _, r := range fused {
		key := chunkKey(r.Chunk)
		if denseKeys[key] && lexicalKeys[key] {
			intersection = append(intersection, r)
		}
	}
	if len(intersection) >= limit {
		return intersection
	}
	return fused
}

func chunkKey(c Chunk) string {
	if c.ID != "" {
		return c.ID
	}
	return c.DocID + "|" + c.Content
}
