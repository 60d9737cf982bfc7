// Package http serves the expense JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"expense-svc/internal/auth"
	"expense-svc/internal/core"
	applog "expense-svc/internal/log"
	"expense-svc/internal/middleware/ratelimit"
	"expense-svc/internal/middleware/security"
	"expense-svc/internal/middleware/trace"
	"expense-svc/internal/store"
)

// Route paths of the expense API.
const (
	PathList    = "/expense/list"
	PathCreate  = "/expense/create"
	PathModify  = "/expense/modify"
	PathDelete  = "/expense/delete"
	PathHealth  = "/healthz"
	PathReady   = "/readyz"
	PathMetrics = "/metrics"
)

// ExpenseService is the application layer the handlers drive.
type ExpenseService interface {
	List(ctx context.Context, owner, rawMonth string) ([]core.Expense, error)
	Create(ctx context.Context, owner string, draft core.ExpenseDraft) (core.Expense, error)
	Modify(ctx context.Context, owner string, draft core.ExpenseDraft) (core.Expense, error)
	Delete(ctx context.Context, owner string, id int64) error
}

// Config wires a Server. Expenses and Authenticator are required.
type Config struct {
	Addr           string
	Expenses       ExpenseService
	Authenticator  auth.Authenticator
	Readiness      store.Pinger
	Logger         *applog.Logger
	RateLimit      ratelimit.Config
	TrustedProxies []string
	Headers        *security.HeadersConfig
}

// Server wraps http.Server with the expense routes and their middleware.
type Server struct {
	http.Server

	expenses  ExpenseService
	readiness store.Pinger
	logger    *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware
	metrics  *appMetrics
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Expenses == nil {
		return nil, errors.New("http: expense service is required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("http: authenticator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	trusted := cfg.TrustedProxies
	if trusted == nil {
		trusted = security.DefaultTrustedProxies
	}
	detector, err := security.NewDetector(trusted)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	headersCfg := security.DefaultHeadersConfig()
	if cfg.Headers != nil {
		headersCfg = *cfg.Headers
	}

	s := &Server{
		expenses:  cfg.Expenses,
		readiness: cfg.Readiness,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		detector:  detector,
		trace:     trace.NewMiddleware(logger, detector.ExtractClientIP),
		metrics:   newAppMetrics(),
	}

	authenticate := auth.Middleware(cfg.Authenticator, s.metrics.incAuthDenials)
	limit := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, detector.ExtractClientIP(r),
				applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})

	// Reads are authenticated only; mutations are also rate limited per client.
	read := func(h http.HandlerFunc, methods ...string) http.Handler {
		return allowMethods(authenticate(h).ServeHTTP, methods...)
	}
	write := func(h http.HandlerFunc, methods ...string) http.Handler {
		return allowMethods(limit(authenticate(h)).ServeHTTP, methods...)
	}

	mux := http.NewServeMux()
	mux.Handle(PathList, read(s.handleListExpenses, http.MethodGet))
	mux.Handle(PathCreate, write(s.handleCreateExpense, http.MethodPost))
	mux.Handle(PathModify, write(s.handleModifyExpense, http.MethodPost))
	mux.Handle(PathDelete, write(s.handleDeleteExpense, http.MethodGet))
	mux.HandleFunc(PathHealth, allowMethods(s.handleHealth, http.MethodGet))
	mux.HandleFunc(PathReady, allowMethods(s.handleReady, http.MethodGet))
	mux.HandleFunc(PathMetrics, allowMethods(s.handleMetrics, http.MethodGet))

	headers := security.NewHeadersMiddleware(headersCfg)
	handler := s.trace.Middleware(detector.Middleware(headers.Middleware(mux)))

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout. The limiter's cleanup loop runs alongside.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		return s.limiter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
