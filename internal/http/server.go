// Package http serves the ledger as a local JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"calmledger/internal/cache"
	"calmledger/internal/log"
	"calmledger/internal/middleware/ratelimit"
	"calmledger/internal/middleware/security"
	"calmledger/internal/middleware/trace"
	"calmledger/internal/services"
)

// DefaultTransactionLimit caps /api/state when no limit is given.
const DefaultTransactionLimit = 50

const maxBodyBytes = 1 << 20

// Config tunes the server. Zero values fall back to defaults.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	StatsCacheSize     int
	StatsCacheTTL      time.Duration
	Logger             *log.Logger

	// Ready, when set, backs /readyz.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	svc      *services.LedgerService
	stats    *cache.DashboardCache
	sweeper  *cache.Sweeper
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger
	ready    func(ctx context.Context) error

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware around svc, returning a
// ready-to-run http.Server.
func NewServer(cfg Config, svc *services.LedgerService) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.StatsCacheSize <= 0 {
		cfg.StatsCacheSize = 64
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = 5 * time.Minute
	}

	s := &Server{
		svc:      svc,
		stats:    cache.NewDashboardCache(svc, cfg.StatsCacheSize, cfg.StatsCacheTTL),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
		logger:   cfg.Logger.WithComponent(log.ComponentHTTP),
		ready:    cfg.Ready,
	}
	s.sweeper = cache.NewSweeper(cfg.Logger, time.Minute, s.stats)
	s.sweeper.Start()

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit,
		http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(cfg.Logger, s.detector.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/accounts/{id}/references", s.handleAccountReferences)

	mux.HandleFunc("POST /api/tags", s.handleCreateTag)
	mux.HandleFunc("PUT /api/tags/{id}", s.handleUpdateTag)
	mux.HandleFunc("DELETE /api/tags/{id}", s.handleDeleteTag)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/recurrings", s.handleCreateRecurring)
	mux.HandleFunc("DELETE /api/recurrings/{id}", s.handleDeleteRecurring)
	mux.HandleFunc("POST /api/recurrings/{id}/toggle", s.handleToggleRecurring)
	mux.HandleFunc("POST /api/recurrings/{id}/materialize", s.handleMaterializeRecurring)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "Rate limit exceeded. Please try again later."})
}

// Shutdown stops background work and drains the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.sweeper.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
