package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/config"
)

// VectorSize matches the embedding dimension the original backend used
// (OpenAI text-embedding-3-small / ada-002 family).
const VectorSize = 1536

// DistanceMetric mirrors the teacher adapter's DistanceMetric enum
// (internal/adapters/vectordb/qdrant/adapter.go).
type DistanceMetric string

const (
	DistanceCosine    DistanceMetric = "cosine"
	DistanceDot       DistanceMetric = "dot"
	DistanceEuclidean DistanceMetric = "euclidean"
)

// Point is one stored vector plus its chunk payload.
type Point struct {
	ID      string
	Vector  []float32
	Chunk   Chunk
}

// ScoredPoint is a Point plus its similarity score against a query.
type ScoredPoint struct {
	Point Point
	Score float64
}

// VectorStore is the C1 dense-retrieval backend. A collection is the
// unit of isolation: one per session per scope (kb_<session>,
// user_docs_<session>), matching spec.md §3's retrieval collection model.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string) error
	DropCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, query []float32, topK int) ([]ScoredPoint, error)
}

// NewVectorStore selects the configured backend, grounded on the
// teacher's Config.Backend switch in internal/adapters/vectordb/qdrant.
func NewVectorStore(cfg config.VectorDBConfig, logger *logrus.Logger) VectorStore {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryVectorStore()
	default:
		return NewQdrantStore(cfg, logger)
	}
}

// MemoryVectorStore is the in-process backend used by default and in
// tests: a mutex-guarded map of collections, each a flat slice of Points
// scored by brute-force cosine similarity.
type MemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string][]Point
}

// NewMemoryVectorStore builds an empty in-process store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{collections: make(map[string][]Point)}
}

func (s *MemoryVectorStore) EnsureCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = nil
	}
	return nil
}

func (s *MemoryVectorStore) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], points...)
	return nil
}

func (s *MemoryVectorStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]ScoredPoint, error) {
	s.mu.RLock()
	points := s.collections[collection]
	s.mu.RUnlock()

	scored := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		scored = append(scored, ScoredPoint{Point: p, Score: cosineSimilarity(query, p.Vector)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
