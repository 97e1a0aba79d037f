// Package httpapi is the gin-based HTTP surface, grounded on the
// teacher's GinRouter (internal/router) structure and logging middleware
// style, and on cmd/superagent/main.go's SetupRouter bootstrap entry
// point. The teacher's own internal/router carries only test files for an
// absent real router (see DESIGN.md), so this is a fresh implementation
// rather than an adaptation of that package.
package httpapi

import (
	"bufio"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/eventbus"
	"dev.helix.agent/internal/graph"
	"dev.helix.agent/internal/logging"
	"dev.helix.agent/internal/orchestrator"
	"dev.helix.agent/internal/retrieval"
	"dev.helix.agent/internal/sessioncache"
	"dev.helix.agent/internal/sessionstore"
	"dev.helix.agent/internal/streamsink"
)

// Server holds every dependency the HTTP handlers need.
type Server struct {
	cfg       *config.Config
	log       *logrus.Logger
	engine    *gin.Engine
	store     *sessionstore.Store
	cache     *sessioncache.Manager
	orch      *orchestrator.Orchestrator
	runtime   *graph.Runtime
	fetcher   DocumentFetcher
	index     *retrieval.Index
	publisher eventbus.Publisher
}

// NewServer wires the HTTP surface to its collaborators and registers every route.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	store *sessionstore.Store,
	cache *sessioncache.Manager,
	orch *orchestrator.Orchestrator,
	runtime *graph.Runtime,
	fetcher DocumentFetcher,
	index *retrieval.Index,
	publisher eventbus.Publisher,
) *Server {
	s := &Server{
		cfg:       cfg,
		log:       logging.OrDefault(logger),
		store:     store,
		cache:     cache,
		orch:      orch,
		runtime:   runtime,
		fetcher:   fetcher,
		index:     index,
		publisher: publisher,
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogMiddleware())

	api := s.engine.Group("/api")
	{
		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id", s.handleGetSession)
		api.POST("/sessions/:id/gpt-config", s.handleSetGPTConfig)
		api.POST("/sessions/:id/add-documents", s.handleAddDocuments)
		api.GET("/sessions/:id/documents", s.handleListDocuments)
		api.POST("/sessions/:id/chat/stream", s.handleChatStream)
		api.DELETE("/sessions/:id", s.handleDeleteSession)
		api.GET("/health", s.handleHealth)
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Engine returns the underlying gin engine, e.g. for http.Server.Handler.
func (s *Server) Engine() http.Handler { return s.engine }

// requestLogMiddleware attaches method/path/status/latency fields to every
// request, matching the teacher's requestCounterMiddleware shape.
func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("request handled")
	}
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	session := s.store.Create()
	c.JSON(http.StatusOK, createSessionResponse{SessionID: session.ID, CreatedAt: session.CreatedAt})
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleSetGPTConfig(c *gin.Context) {
	var cfg domain.GPTConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.store.Update(c.Param("id"), func(session *domain.Session) {
		session.Config = cfg
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type addDocumentsRequest struct {
	Documents []documentRef `json:"documents"`
	DocType   string        `json:"doc_type"` // "user" | "kb"
}

type documentRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
	Size     int64  `json:"size"`
}

func (s *Server) handleAddDocuments(c *gin.Context) {
	sessionID := c.Param("id")
	var req addDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scope := domain.ScopeUserDocs
	if req.DocType == "kb" {
		scope = domain.ScopeKB
	}

	var documents []domain.Document
	for _, ref := range req.Documents {
		content, err := s.fetcher.Fetch(c.Request.Context(), ref.FileURL)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch " + ref.Filename + ": " + err.Error()})
			return
		}
		documents = append(documents, domain.Document{
			ID: ref.ID, Filename: ref.Filename, FileType: ref.FileType,
			Content: content, DocType: scope,
		})
	}

	err := s.store.Update(sessionID, func(session *domain.Session) {
		if scope == domain.ScopeUserDocs {
			session.UserDocs = documents // new upload wholesale-replaces prior user docs
		} else {
			session.KBDocs = append(session.KBDocs, documents...)
		}
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if scope == domain.ScopeUserDocs {
		if err := s.cache.InvalidateUserDocs(ctx, sessionID); err != nil {
			s.log.WithError(err).Warn("failed to invalidate user docs collection")
		}
		collection, err := s.cache.EnsureUserDocsCollection(ctx, sessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// User docs are few and must be searchable by the very next chat
		// turn, so ingestion happens inline rather than via the async pool.
		for _, doc := range documents {
			opts := retrieval.IngestOptions{DocID: doc.ID, Filename: doc.Filename, FileType: doc.FileType}
			if err := s.index.Ingest(ctx, collection, doc.Content, opts); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
	} else {
		if _, err := s.cache.EnsureKBCollection(ctx, sessionID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// Knowledge-base uploads can be large, so ingestion is handed off
		// to the background pool (inline by default, or via a real broker
		// when one is configured) instead of blocking this request.
		for _, doc := range documents {
			job := eventbus.IngestJob{
				SessionID: sessionID, DocID: doc.ID, Filename: doc.Filename,
				FileType: doc.FileType, Content: doc.Content, KB: true,
			}
			if err := s.publisher.Publish(ctx, job); err != nil {
				s.log.WithError(err).WithField("doc_id", doc.ID).Warn("failed to publish kb ingestion job")
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ingested", "count": len(documents)})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	session, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploaded_docs": session.UserDocs, "kb": session.KBDocs})
}

type chatStreamRequest struct {
	Message     string `json:"message"`
	WebSearch   bool   `json:"web_search"`
	RAG         bool   `json:"rag"`
	DeepSearch  bool   `json:"deep_search"`
	UploadedDoc bool   `json:"uploaded_doc"`
	Hybrid      bool   `json:"hybrid"`
}

func (s *Server) handleChatStream(c *gin.Context) {
	sessionID := c.Param("id")
	session, err := s.store.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req chatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := bufio.NewWriter(c.Writer)
	flush := func() error {
		writer.Flush()
		c.Writer.Flush()
		return nil
	}
	sink := streamsink.NewWriter(writer, sessionID, flush)

	state := &domain.GraphState{
		SessionID: sessionID,
		UserQuery: req.Message,
		Config:    session.Config,
		UserDocs:  session.UserDocs,
		KBDocs:    session.KBDocs,
		Messages:  session.Messages,
		Timestamp: time.Now(),
		Context:   domain.ConversationContext{StepResults: make(map[string]string)},
		Hints: domain.ChatHints{
			WebSearch: req.WebSearch, RAG: req.RAG,
			DeepSearch: req.DeepSearch, UploadedDoc: req.UploadedDoc,
			Hybrid: req.Hybrid,
		},
	}

	ctx := c.Request.Context()
	if err := s.orch.Summarize(ctx, state); err != nil {
		s.log.WithError(err).Debug("summary update skipped")
	}
	plan := s.orch.BuildPlan(ctx, state)

	runErr := s.runtime.Execute(ctx, state, sink)
	if runErr == nil && plan.Synthesize {
		if err := s.orch.Synthesize(ctx, state); err != nil {
			s.log.WithError(err).Warn("plan synthesis failed")
		}
	}

	if runErr != nil {
		sink.Error(runErr)
		flush()
		return
	}

	_ = s.store.Update(sessionID, func(sess *domain.Session) {
		sess.Messages = append(sess.Messages,
			domain.Message{Role: "user", Content: req.Message, Timestamp: time.Now()},
			domain.Message{Role: "assistant", Content: state.Response, Node: string(state.Context.LastRoute), Timestamp: time.Now()},
		)
	})

	sink.Done(string(state.Context.LastRoute), state.Response)
	writer.Flush()
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	s.cache.EndSession(c.Request.Context(), sessionID)
	s.store.Delete(sessionID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "ok",
		"provider_configured":   s.cfg.LLM.APIKey != "",
		"redis_connected":       s.cache.IsEnabled(),
		"vector_store_backend":  s.cfg.VectorDB.Backend,
		"web_search_configured": s.cfg.WebSearch.APIKey != "",
		"timestamp":             time.Now(),
	})
}
