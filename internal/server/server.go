// Package server is the HTTP Router (§4.G): chi-based routing, CORS,
// rate limiting, cache/security headers, and error mapping, wired
// against the already-built ContentIndex, Store, auth.Checker, and
// gitcgi.Bridge collaborators. The Post-Push Orchestrator (§4.H) is
// invoked from the Git route handler in handlers_git.go.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/riley-cms/riley-cms/internal/auth"
	"github.com/riley-cms/riley-cms/internal/config"
	"github.com/riley-cms/riley-cms/internal/content"
	"github.com/riley-cms/riley-cms/internal/gitcgi"
	"github.com/riley-cms/riley-cms/internal/orchestrator"
	"github.com/riley-cms/riley-cms/internal/storage"
)

// Deps are the already-constructed collaborators the router dispatches
// to; Server owns none of their lifecycles except the http.Server
// itself.
type Deps struct {
	Index        *content.Index
	Store        storage.Store
	Auth         *auth.Checker
	GitBridge    *gitcgi.Bridge
	Orchestrator *orchestrator.Orchestrator
	Config       config.ServerConfig
	// RepoPath is the repository git-http-backend serves; it is passed
	// unchanged as the CGI request's RepoPath (GIT_PROJECT_ROOT), and the
	// path after /git/ becomes PATH_INFO.
	RepoPath   string
	GitTimeout time.Duration
	Logger     *log.Logger
	// BypassRateLimit, when non-nil, lets test harnesses synthesize
	// requests without a real TCP peer (§5).
	BypassRateLimit func(*http.Request) bool
	Registerer      prometheus.Registerer
}

// Server is the riley-cms HTTP server.
type Server struct {
	deps    Deps
	logger  *log.Logger
	metrics *metrics
	httpSrv *http.Server
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New constructs a Server and its full route tree. It does not start
// listening; call ListenAndServe.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(os.Stderr, "[riley-cms:server] ", log.LstdFlags)
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{deps: deps, logger: deps.Logger, baseCtx: ctx, cancel: cancel}
	s.metrics = newMetrics(deps.Registerer)
	limiter := newIPLimiter()

	r := chi.NewRouter()
	r.Use(securityHeaders)
	r.Use(buildCORS(deps.Config.CORSOrigins))
	r.Use(authMiddleware(deps.Auth))
	r.Use(rateLimit(limiter, deps.Config.BehindProxy, deps.BypassRateLimit))

	route := func(pattern, method string, h http.HandlerFunc) {
		r.With(s.metrics.instrument(pattern)).Method(method, pattern, h)
	}

	route("/health", http.MethodGet, s.handleHealth)
	route("/api/v1/posts", http.MethodGet, s.handleListPosts)
	route("/api/v1/posts/{slug}", http.MethodGet, s.handleGetPost)
	route("/api/v1/posts/{slug}/raw", http.MethodGet, s.handleGetPostRaw)
	route("/api/v1/series", http.MethodGet, s.handleListSeries)
	route("/api/v1/series/{slug}", http.MethodGet, s.handleGetSeries)
	route("/api/v1/assets", http.MethodGet, s.handleListAssets)
	r.With(s.metrics.instrument("/metrics")).Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if !isAdmin(req.Context()) {
			writeError(w, http.StatusUnauthorized, "metrics require an admin token")
			return
		}
		metricsHandler().ServeHTTP(w, req)
	})
	r.With(s.metrics.instrument("/git/*")).HandleFunc("/git/*", s.handleGit)

	host := deps.Config.Host
	port := deps.Config.Port
	if port == 0 {
		port = 8080
	}

	s.httpSrv = &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // Git push/clone bodies can run long; enforced instead by gitcgi's own CGI timeout
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	return s
}

// ListenAndServe starts the server and blocks until shutdown, draining
// in-flight requests on SIGINT/SIGTERM before returning.
func (s *Server) ListenAndServe() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Printf("received %s, shutting down...", sig)
		s.Shutdown()
	}()

	s.logger.Printf("listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops accepting new ones.
func (s *Server) Shutdown() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)
	s.cancel()
}

// Handler exposes the router directly, for tests that drive it with
// httptest without a real listener.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }
