package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int, error)
}

// InvalidationHook runs after entries of the namespace it was registered for were dropped.
type InvalidationHook func(ctx context.Context)

// CacheService fronts the shared cache. Keys take the form "<namespace>:<name>"; lifetimes and
// invalidation hooks are configured per namespace. A nil *CacheService is a disabled cache.
type CacheService struct {
	store      cacheStore
	metrics    *MetricsService
	logger     *zap.Logger
	defaultTTL time.Duration

	mu    sync.RWMutex
	ttls  map[string]time.Duration
	hooks map[string][]InvalidationHook
}

// NewCacheService constructs a cache service. Entries of namespaces without their own TTL live
// for defaultTTL.
func NewCacheService(store cacheStore, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		store:      store,
		metrics:    metrics,
		logger:     logger,
		defaultTTL: defaultTTL,
		ttls:       make(map[string]time.Duration),
		hooks:      make(map[string][]InvalidationHook),
	}
}

// Enabled reports whether entries are actually stored.
func (s *CacheService) Enabled() bool {
	return s != nil && s.store != nil
}

// SetTTL fixes the lifetime of entries in namespace. A non-positive ttl restores the default.
func (s *CacheService) SetTTL(namespace string, ttl time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		delete(s.ttls, namespace)
		return
	}
	s.ttls[namespace] = ttl
}

// OnInvalidate registers hook to run after every successful invalidation touching namespace.
func (s *CacheService) OnInvalidate(namespace string, hook InvalidationHook) {
	if s == nil || hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[namespace] = append(s.hooks[namespace], hook)
}

// Get loads key into dest and reports whether it was a hit. Misses are not errors.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.store.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key with the lifetime of its namespace.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if !s.Enabled() {
		return nil
	}
	start := time.Now()
	err := s.store.Set(ctx, key, value, s.ttlFor(namespaceOf(key)))
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate drops the entries matching pattern and then runs the hooks of its namespace.
// Hooks are skipped when the delete fails, since stale entries may still be served.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	removed, err := s.store.DeleteMatching(ctx, pattern)
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	s.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("removed", removed))

	namespace := namespaceOf(pattern)
	s.mu.RLock()
	hooks := append([]InvalidationHook(nil), s.hooks[namespace]...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		hook(ctx)
	}
	return nil
}

func (s *CacheService) ttlFor(namespace string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ttl, ok := s.ttls[namespace]; ok {
		return ttl
	}
	return s.defaultTTL
}

// namespaceOf returns the segment before the first ':' of a key or pattern.
func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return strings.TrimSuffix(key, "*")
}
