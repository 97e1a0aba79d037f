package retrieval

import (
	"context"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/config"
)

// QdrantStore is the VectorStore backend for real deployments, grounded
// on internal/adapters/vectordb/qdrant/adapter.go's Config/connection
// shape but talking to the real github.com/qdrant/go-client driver
// directly rather than through the absent digital.vasic.vectordb module.
type QdrantStore struct {
	cfg    config.VectorDBConfig
	logger *logrus.Logger
	conn   *grpc.ClientConn
	points qdrant.PointsClient
	colls  qdrant.CollectionsClient
}

// NewQdrantStore builds a lazily-connecting Qdrant-backed store.
func NewQdrantStore(cfg config.VectorDBConfig, logger *logrus.Logger) *QdrantStore {
	return &QdrantStore{cfg: cfg, logger: logger}
}

func (s *QdrantStore) dial() error {
	if s.conn != nil {
		return nil
	}
	var creds credentials.TransportCredentials
	if s.cfg.UseTLS {
		creds = credentials.NewTLS(nil)
	} else {
		creds = insecure.NewCredentials()
	}
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "dial qdrant", err)
	}
	s.conn = conn
	s.points = qdrant.NewPointsClient(conn)
	s.colls = qdrant.NewCollectionsClient(conn)
	return nil
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, name string) error {
	if err := s.dial(); err != nil {
		return err
	}
	existing, err := s.colls.List(ctx, &qdrant.ListCollectionsRequest{})
	if err == nil {
		for _, c := range existing.GetCollections() {
			if c.GetName() == name {
				return nil
			}
		}
	}
	_, err = s.colls.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(VectorSize),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "create qdrant collection", err)
	}
	return nil
}

func (s *QdrantStore) DropCollection(ctx context.Context, name string) error {
	if err := s.dial(); err != nil {
		return err
	}
	_, err := s.colls.Delete(ctx, &qdrant.DeleteCollection{CollectionName: name})
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "drop qdrant collection", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if err := s.dial(); err != nil {
		return err
	}
	wait := true
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := map[string]*qdrant.Value{
			"content": {Kind: &qdrant.Value_StringValue{StringValue: p.Chunk.Content}},
			"doc_id":  {Kind: &qdrant.Value_StringValue{StringValue: p.Chunk.DocID}},
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID}},
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: p.Vector}}},
			Payload: payload,
		})
	}
	_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qpoints,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "upsert qdrant points", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]ScoredPoint, error) {
	if err := s.dial(); err != nil {
		return nil, err
	}
	limit := uint64(topK)
	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         query,
		Limit:          limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "search qdrant", err)
	}
	out := make([]ScoredPoint, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		content := ""
		docID := ""
		if v, ok := r.GetPayload()["content"]; ok {
			content = v.GetStringValue()
		}
		if v, ok := r.GetPayload()["doc_id"]; ok {
			docID = v.GetStringValue()
		}
		out = append(out, ScoredPoint{
			Point: Point{ID: r.GetId().GetUuid(), Chunk: Chunk{Content: content, DocID: docID}},
			Score: float64(r.GetScore()),
		})
	}
	return out, nil
}
