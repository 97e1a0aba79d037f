package retrieval

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/apperr"
)

// Embedder is the dependency the retrieval index uses to turn text into
// vectors; satisfied by *llmclient.Client without this package importing it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is C1, the hybrid retrieval subsystem: it owns chunking,
// embedding, the vector store, and a per-collection lexical index,
// fused by reciprocal rank or linear weighting per spec.md §4.1.
type Index struct {
	store    VectorStore
	embedder Embedder
	chunker  *RecursiveChunker
	logger   *logrus.Logger

	lexical map[string]*LexicalIndex
}

// NewIndex builds a retrieval index over the given vector store.
func NewIndex(store VectorStore, embedder Embedder, logger *logrus.Logger) *Index {
	return &Index{
		store:    store,
		embedder: embedder,
		chunker:  NewRecursiveChunker(DefaultChunkerConfig()),
		logger:   logger,
		lexical:  make(map[string]*LexicalIndex),
	}
}

// CollectionName derives the per-session, per-scope collection name,
// matching spec.md §3's "kb_<session>" / "user_docs_<session>" scheme.
func CollectionName(scope string, sessionID string) string {
	return fmt.Sprintf("%s_%s", scope, sessionID)
}

// IngestOptions carries per-document metadata into chunk payloads.
type IngestOptions struct {
	DocID    string
	Filename string
	FileType string
}

// Ingest chunks, embeds, and upserts one document's content into the
// named collection, and rebuilds that collection's lexical index.
// Rebuilding lexical on every ingest matches spec.md's "cache invalidated
// and rebuilt on new upload" contract (C2).
func (idx *Index) Ingest(ctx context.Context, collection string, text string, opts IngestOptions) error {
	if err := idx.store.EnsureCollection(ctx, collection); err != nil {
		return err
	}

	metadata := map[string]string{"filename": opts.Filename, "file_type": opts.FileType}
	chunks := idx.chunker.ChunkDocument(opts.DocID, text, metadata)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		// Labeling chunks with their source document, carried forward from
		// the original backend's KB context assembly so citations can name
		// the filename they came from.
		texts[i] = fmt.Sprintf("[Document: %s (%s)]\n%s", opts.Filename, opts.FileType, c.Content)
	}

	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return apperr.New(apperr.KindParseFailure, "embedding count mismatch")
	}

	points := make([]Point, len(chunks))
	for i, c := range chunks {
		points[i] = Point{ID: c.ID, Vector: vectors[i], Chunk: c}
	}
	if err := idx.store.Upsert(ctx, collection, points); err != nil {
		return err
	}

	all := chunks
	if prev, ok := idx.lexical[collection]; ok {
		all = append(append([]Chunk{}, prev.docs...), chunks...)
	}
	idx.lexical[collection] = NewLexicalIndex(all)
	return nil
}

// Ensure lazily creates the named collection without ingesting anything,
// used by the session cache manager to reserve a collection up front.
func (idx *Index) Ensure(ctx context.Context, collection string) error {
	return idx.store.EnsureCollection(ctx, collection)
}

// DropCollection evicts both the vector collection and its cached
// lexical index — used when a session ends or a KB is replaced wholesale.
func (idx *Index) DropCollection(ctx context.Context, collection string) error {
	delete(idx.lexical, collection)
	return idx.store.DropCollection(ctx, collection)
}

// SearchStrategy picks how dense and lexical candidates are combined.
type SearchStrategy string

const (
	StrategyRRF          SearchStrategy = "rrf"
	StrategyLinear       SearchStrategy = "linear"
	StrategyIntersection SearchStrategy = "intersection"
	// StrategyDense is nearest-neighbor-only: no lexical index is
	// consulted and no fusion runs, matching spec.md §4.1's non-hybrid
	// path for user-doc search.
	StrategyDense SearchStrategy = "dense"
)

// Search runs hybrid retrieval against one collection and returns the
// top-k fused chunks. Candidate fan-out follows spec.md §4.1: 3x topK
// per side for RRF/linear fusion, 5x topK per side for the
// intersection-with-union-fallback strategy, and exactly topK (no fan-out,
// no lexical side) for StrategyDense.
func (idx *Index) Search(ctx context.Context, collection string, query string, topK int, strategy SearchStrategy) ([]Ranked, error) {
	if topK <= 0 {
		topK = 6
	}

	queryVecs, err := idx.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "embed query", err)
	}
	if len(queryVecs) == 0 {
		return nil, apperr.New(apperr.KindParseFailure, "no query embedding returned")
	}

	if strategy == StrategyDense {
		denseHits, err := idx.store.Search(ctx, collection, queryVecs[0], topK)
		if err != nil {
			return nil, err
		}
		if len(denseHits) == 0 {
			return nil, apperr.New(apperr.KindRetrievalMiss, "no matching content in "+collection)
		}
		ranked := make([]Ranked, len(denseHits))
		for i, h := range denseHits {
			ranked[i] = Ranked{Chunk: h.Point.Chunk, Score: h.Score}
		}
		return ranked, nil
	}

	fanOut := topK * 3
	if strategy == StrategyIntersection {
		fanOut = topK * 5
	}

	denseHits, err := idx.store.Search(ctx, collection, queryVecs[0], fanOut)
	if err != nil {
		return nil, err
	}
	dense := make([]ScoredChunk, len(denseHits))
	for i, h := range denseHits {
		dense[i] = ScoredChunk{Chunk: h.Point.Chunk, Score: h.Score}
	}

	var lexical []ScoredChunk
	if li, ok := idx.lexical[collection]; ok {
		lexical = li.Search(query, fanOut)
	}

	if len(dense) == 0 && len(lexical) == 0 {
		return nil, apperr.New(apperr.KindRetrievalMiss, "no matching content in "+collection)
	}

	var fused []Ranked
	switch strategy {
	case StrategyLinear:
		fused = LinearFusion(dense, lexical, 0.6, 0.4)
	case StrategyIntersection:
		fused = IntersectOrUnion(dense, lexical, topK)
	default:
		fused = ReciprocalRankFusion(dense, lexical, DefaultRRFK)
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}
