// Package sessioncache implements C2, the cache manager: the per-session
// retrieval-collection lifecycle plus an LLM-response cache, adapted from
// the teacher's internal/cache/cache_service.go and tiered_cache.go. The
// digital.vasic.cache wrapper those files used is absent from the
// retrieval pack, so this talks to github.com/redis/go-redis/v9 directly
// (see DESIGN.md).
package sessioncache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/logging"
	"dev.helix.agent/internal/retrieval"
)

// Manager owns every session's retrieval collections (kb_<session>,
// user_docs_<session>) and an LLM-response cache keyed by request hash,
// matching spec.md §3's cache entry model and §4.2's invalidation rules.
type Manager struct {
	redis      *redis.Client
	enabled    bool
	defaultTTL time.Duration
	index      *retrieval.Index
	logger     *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionLocks
}

type sessionLocks struct {
	mu       sync.Mutex
	hasKB    bool
	hasUser  bool
}

// NewManager connects to Redis, disabling caching gracefully on failure
// exactly as the teacher's NewCacheService does — a down cache must never
// fail the request path, only skip caching.
func NewManager(cfg config.RedisConfig, index *retrieval.Index, logger *logrus.Logger) *Manager {
	logger = logging.OrDefault(logger)
	m := &Manager{
		defaultTTL: 30 * time.Minute,
		index:      index,
		logger:     logger,
		sessions:   make(map[string]*sessionLocks),
	}

	if !cfg.Enabled {
		logger.Info("session cache disabled by configuration")
		return m
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, session cache disabled")
		return m
	}

	m.redis = client
	m.enabled = true
	return m
}

// IsEnabled reports whether the Redis-backed response cache is active.
func (m *Manager) IsEnabled() bool { return m.enabled }

func (m *Manager) lockFor(sessionID string) *sessionLocks {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.sessions[sessionID]
	if !ok {
		sl = &sessionLocks{}
		m.sessions[sessionID] = sl
	}
	return sl
}

// EnsureUserDocsCollection lazily creates the session's user-documents
// retrieval collection.
func (m *Manager) EnsureUserDocsCollection(ctx context.Context, sessionID string) (string, error) {
	sl := m.lockFor(sessionID)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	name := retrieval.CollectionName(string(collectionUserDocs), sessionID)
	if err := m.index.Ensure(ctx, name); err != nil {
		return "", err
	}
	sl.hasUser = true
	return name, nil
}

// EnsureKBCollection lazily creates the session's knowledge-base collection.
func (m *Manager) EnsureKBCollection(ctx context.Context, sessionID string) (string, error) {
	sl := m.lockFor(sessionID)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	name := retrieval.CollectionName(string(collectionKB), sessionID)
	if err := m.index.Ensure(ctx, name); err != nil {
		return "", err
	}
	sl.hasKB = true
	return name, nil
}

// collectionKind names the two retrieval scopes a session can have.
type collectionKind string

const (
	collectionUserDocs collectionKind = "user_docs"
	collectionKB       collectionKind = "kb"
)

// InvalidateUserDocs drops the user-documents collection; the caller
// recreates it with EnsureUserDocsCollection before re-ingesting, per
// spec.md's "new upload evicts the prior cache" rule — user-uploaded
// documents are wholesale-replaced on every /add-documents call, unlike
// the KB which accumulates.
func (m *Manager) InvalidateUserDocs(ctx context.Context, sessionID string) error {
	sl := m.lockFor(sessionID)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	name := retrieval.CollectionName(string(collectionUserDocs), sessionID)
	if err := m.index.DropCollection(ctx, name); err != nil {
		return err
	}
	sl.hasUser = false
	return nil
}

// EndSession evicts every retrieval collection belonging to sessionID,
// called from the DELETE /api/sessions/{id} handler.
func (m *Manager) EndSession(ctx context.Context, sessionID string) {
	sl := m.lockFor(sessionID)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.hasUser {
		_ = m.index.DropCollection(ctx, retrieval.CollectionName(string(collectionUserDocs), sessionID))
	}
	if sl.hasKB {
		_ = m.index.DropCollection(ctx, retrieval.CollectionName(string(collectionKB), sessionID))
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// GetLLMResponse looks up a cached completion for an identical request,
// keyed by a hash of the normalized request — mirrors
// internal/cache/cache_service.go's GetLLMResponse.
func (m *Manager) GetLLMResponse(ctx context.Context, sessionID string, request interface{}) (string, bool) {
	if !m.enabled {
		return "", false
	}
	key := llmResponseKey(sessionID, request)
	val, err := m.redis.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	var cached string
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return "", false
	}
	return cached, true
}

// SetLLMResponse stores a completion under the request's hash key.
func (m *Manager) SetLLMResponse(ctx context.Context, sessionID string, request interface{}, response string) {
	if !m.enabled {
		return
	}
	key := llmResponseKey(sessionID, request)
	data, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := m.redis.Set(ctx, key, data, m.defaultTTL).Err(); err != nil {
		m.logger.WithError(err).Debug("failed to cache llm response")
	}
}

func llmResponseKey(sessionID string, request interface{}) string {
	data, _ := json.Marshal(request)
	sum := sha256.Sum256(data)
	return "llm:" + sessionID + ":" + hex.EncodeToString(sum[:])
}
