// Package http provides the REST server for the ledger API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

// Config holds server configuration
type Config struct {
	Addr               string
	RateLimitPerMinute int
}

// Server serves the ledger API. List responses are cached with a short
// TTL and purged on every write.
type Server struct {
	http.Server
	service *services.LedgerService
	logger  *log.Logger

	categoriesCache   *cache.LRUCache[[]core.Category]
	transactionsCache *cache.LRUCache[[]core.Transaction]
	cacheManager      *cache.Manager
	limiter           *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server
func NewServer(cfg Config, service *services.LedgerService, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		service:           service,
		logger:            logger.WithComponent(log.ComponentHTTP),
		categoriesCache:   cache.NewLRUCache[[]core.Category](16, time.Minute),
		transactionsCache: cache.NewLRUCache[[]core.Transaction](128, time.Minute),
		cacheManager:      cache.NewManager(logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
	}
	s.cacheManager.Register(s.categoriesCache)
	s.cacheManager.Register(s.transactionsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)
	mux.HandleFunc("GET /categories/{id}", s.handleGetCategory)
	mux.HandleFunc("GET /categories/{id}/transactions", s.handleListCategoryTransactions)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)

	mux.HandleFunc("GET /balance", s.handleGetBalance)
	mux.HandleFunc("GET /balance/reconcile", s.handleReconcile)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(logger, clientIP)

	handler := headers.Middleware(
		tracer.Middleware(
			log.Middleware(logger)(
				s.rateLimitWrites(mux))))

	s.Server = http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// rateLimitWrites applies the limiter to mutating requests only, reads
// stay cheap and cacheable
func (s *Server) rateLimitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(clientIP, nil)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// invalidateListCaches drops cached listings after a write
func (s *Server) invalidateListCaches() {
	s.categoriesCache.Purge()
	s.transactionsCache.Purge()
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
