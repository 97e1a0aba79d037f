package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReciprocalRankFusionRewardsAgreement(t *testing.T) {
	shared := Chunk{ID: "shared"}
	denseOnly := Chunk{ID: "dense-only"}
	lexicalOnly := Chunk{ID: "lexical-only"}

	dense := []ScoredChunk{{Chunk: shared, Score: 0.9}, {Chunk: denseOnly, Score: 0.8}}
	lexical := []ScoredChunk{{Chunk: shared, Score: 5.0}, {Chunk: lexicalOnly, Score: 4.0}}

	fused := ReciprocalRankFusion(dense, lexical, 60)
	require.NotEmpty(t, fused)
	assert.Equal(t, "shared", fused[0].Chunk.ID)
}

func TestReciprocalRankFusionIsRankBasedNotScoreBased(t *testing.T) {
	// Wildly different score scales between dense (cosine ~0-1) and
	// lexical (BM25, unbounded) must not distort the fusion — RRF only
	// looks at rank position.
	dense := []ScoredChunk{{Chunk: Chunk{ID: "x"}, Score: 0.99}}
	lexical := []ScoredChunk{{Chunk: Chunk{ID: "y"}, Score: 1000.0}}

	fused := ReciprocalRankFusion(dense, lexical, 60)
	require.Len(t, fused, 2)
	assert.InDelta(t, fused[0].Score, fused[1].Score, 1e-9)
}

func TestIntersectOrUnionFallsBackToUnion(t *testing.T) {
	dense := []ScoredChunk{{Chunk: Chunk{ID: "a"}, Score: 0.9}}
	lexical := []ScoredChunk{{Chunk: Chunk{ID: "b"}, Score: 4.0}}

	result := IntersectOrUnion(dense, lexical, 2)
	assert.Len(t, result, 2)
}

func TestIntersectOrUnionReturnsIntersectionWhenSufficient(t *testing.T) {
	shared := Chunk{ID: "shared"}
	dense := []ScoredChunk{{Chunk: shared, Score: 0.9}}
	lexical := []ScoredChunk{{Chunk: shared, Score: 4.0}}

	result := IntersectOrUnion(dense, lexical, 1)
	require.Len(t, result, 1)
	assert.Equal(t, "shared", result[0].Chunk.ID)
}
