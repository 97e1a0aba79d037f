package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/eventbus"
	"dev.helix.agent/internal/graph"
	"dev.helix.agent/internal/orchestrator"
	"dev.helix.agent/internal/retrieval"
	"dev.helix.agent/internal/sessioncache"
	"dev.helix.agent/internal/sessionstore"
	"dev.helix.agent/internal/streamsink"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

type echoNode struct{}

func (echoNode) Route() domain.Route { return domain.RouteSimpleLLM }
func (echoNode) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	if sink != nil {
		sink.Content(string(domain.RouteSimpleLLM), "echo: "+query, "echo: "+query, false)
	}
	return "echo: " + query, nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return "fetched content for " + url, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	idx := retrieval.NewIndex(retrieval.NewMemoryVectorStore(), fakeEmbedder{}, nil)
	cache := sessioncache.NewManager(config.RedisConfig{Enabled: false}, idx, nil)
	store := sessionstore.New()
	orch := orchestrator.New(nil, nil)
	rt := graph.New(nil)
	rt.Register(echoNode{})

	cfg := &config.Config{
		LLM:       config.LLMConfig{APIKey: "key"},
		VectorDB:  config.VectorDBConfig{Backend: "memory"},
		WebSearch: config.WebSearchConfig{APIKey: ""},
	}
	publisher := eventbus.NewInMemoryPublisher(nil)
	return NewServer(cfg, nil, store, cache, orch, rt, fakeFetcher{}, idx, publisher)
}

func TestHealthReportsConfiguredProviders(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"provider_configured":true`)
}

func TestCreateGetAndDeleteSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	createReq := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	createRec := httptest.NewRecorder()
	s.Engine().ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusOK, createRec.Code)
	assert.Contains(t, createRec.Body.String(), "session_id")

	session := s.store.Create()
	getReq := httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.ID, nil)
	getRec := httptest.NewRecorder()
	s.Engine().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+session.ID, nil)
	delRec := httptest.NewRecorder()
	s.Engine().ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusOK, delRec.Code)

	_, err := s.store.Get(session.ID)
	require.Error(t, err)
}

func TestGetUnknownSessionReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddDocumentsFetchesAndStoresUserDocs(t *testing.T) {
	s := newTestServer(t)
	session := s.store.Create()

	body := `{"documents":[{"id":"d1","filename":"a.txt","file_url":"http://example.com/a.txt","file_type":"txt"}],"doc_type":"user"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/add-documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	got, err := s.store.Get(session.ID)
	require.NoError(t, err)
	require.Len(t, got.UserDocs, 1)
	assert.Contains(t, got.UserDocs[0].Content, "fetched content for")
}

type recordingPublisher struct {
	jobs []eventbus.IngestJob
}

func (p *recordingPublisher) Publish(ctx context.Context, job eventbus.IngestJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

func TestAddDocumentsPublishesKBUploadsForBackgroundIngestion(t *testing.T) {
	s := newTestServer(t)
	publisher := &recordingPublisher{}
	s.publisher = publisher
	session := s.store.Create()

	body := `{"documents":[{"id":"d1","filename":"manual.txt","file_url":"http://example.com/manual.txt","file_type":"txt"}],"doc_type":"kb"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/add-documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.jobs, 1)
	assert.True(t, publisher.jobs[0].KB)
	assert.Equal(t, "d1", publisher.jobs[0].DocID)
}

func TestChatStreamEmitsSSEFramesAndDone(t *testing.T) {
	s := newTestServer(t)
	session := s.store.Create()

	body := `{"message":"hello there"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	output := rec.Body.String()
	assert.Contains(t, output, `"type":"content"`)
	assert.Contains(t, output, `"type":"done"`)
	assert.Contains(t, output, "echo: hello there")

	got, err := s.store.Get(session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}
