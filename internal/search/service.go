package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/crowdframe/internal/cache"
	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/worker"
)

// DefaultPageSize is used when neither the task nor the app config sets one
const DefaultPageSize = 10

// Service wraps a provider with page clamping, rate limiting, domain
// filtering and response caching
type Service struct {
	provider Provider
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  *worker.Limiter
	pageSize int
	blocked  []string
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithCache caches decoded result pages
func WithCache(c cache.Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithLimiter throttles provider calls, keyed by provider name
func WithLimiter(l *worker.Limiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithPageSize sets the requested page size
func WithPageSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithBlockedDomains adds domain substrings whose results are dropped
func WithBlockedDomains(domains []string) ServiceOption {
	return func(s *Service) {
		for _, d := range domains {
			if d = strings.TrimSpace(d); d != "" {
				s.blocked = append(s.blocked, d)
			}
		}
	}
}

// NewService creates a search service around a provider
func NewService(p Provider, opts ...ServiceOption) *Service {
	s := &Service{
		provider: p,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromConfig builds the provider, cache and limiter from the
// application config. Task settings may override provider, page size
// and add blocked domains.
func NewServiceFromConfig(cfg *model.Config, task model.SearchEngineSettings) (*Service, error) {
	scfg := ConfigFromModel(cfg.Search, cfg.HTTP)
	if task.Provider != "" {
		scfg.Provider = task.Provider
	}

	provider, err := NewProvider(scfg)
	if err != nil {
		return nil, fmt.Errorf("create search provider: %w", err)
	}

	pageSize := cfg.Search.PageSize
	if task.PageSize > 0 {
		pageSize = task.PageSize
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	for name, r := range cfg.RateLimiting.Providers {
		if err := limiter.SetRate(name, r.RequestsPerSecond, r.BurstSize); err != nil {
			return nil, fmt.Errorf("rate limit for provider %q: %w", name, err)
		}
	}

	opts := []ServiceOption{
		WithPageSize(pageSize),
		WithBlockedDomains(cfg.Search.BlockedDomains),
		WithBlockedDomains(task.BlockedDomains),
		WithLimiter(limiter),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, WithCache(
			cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL),
			cfg.Cache.MemoryTTL,
		))
	}

	return NewService(provider, opts...), nil
}

// ProviderName returns the underlying provider name
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// PageSize returns the effective page size after clamping
func (s *Service) PageSize() int {
	return clamp(s.pageSize, 1, s.provider.MaxPageSize())
}

// Search fetches one page of normalized results starting at offset
func (s *Service) Search(ctx context.Context, query string, offset int) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchResult{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	count := s.PageSize()

	key := cache.CacheKey(fmt.Sprintf("%s|%s|%d|%d|%s", s.provider.Name(), query, offset, count, strings.Join(s.blocked, ",")))
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			var cached []model.SearchResult
			if err := json.Unmarshal(data, &cached); err == nil {
				logger.Debug("search: cache hit for %q (offset %d)", query, offset)
				return cached, nil
			}
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.provider.Name()); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := s.provider.Search(ctx, query, offset, count)
	if err != nil {
		return nil, err
	}

	results := cleanResults(resp.Filter(s.blocked).Decode())
	logger.Debug("search: %s returned %d results for %q", s.provider.Name(), len(results), query)

	if s.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			if err := s.cache.Set(key, data, s.cacheTTL); err != nil {
				logger.Warn("search: cache write failed: %v", err)
			}
		}
	}

	return results, nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PruneCache drops expired entries from a persistent cache layer
func (s *Service) PruneCache() (int, error) {
	p, ok := s.cache.(interface{ Prune() (int, error) })
	if !ok {
		return 0, nil
	}
	return p.Prune()
}
