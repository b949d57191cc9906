package api

import (
	"context"
	"net/http"
	"time"

	"github.com/mhessel/penaltypot/internal/app"
)

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux

	// Use case dependencies
	health   app.HealthUsecase
	ref      app.RefUsecase
	sessions app.SessionsUsecase
	entries  app.EntriesUsecase
	verify   app.VerifyUsecase
	report   app.ReportUsecase

	// SSE hub
	hub *Hub

	// Auth configuration
	authEnabled  bool
	authUsername string
	authPassword string
	streamSecret []byte
	authFailures *AuthFailureLimiter

	rateLimiter *RateLimiter
	cors        *CORSConfig
	csrfHosts   []string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRefUsecase sets the reference data use case.
func WithRefUsecase(ref app.RefUsecase) ServerOption {
	return func(s *Server) { s.ref = ref }
}

// WithSessionsUsecase sets the sessions use case.
func WithSessionsUsecase(sessions app.SessionsUsecase) ServerOption {
	return func(s *Server) { s.sessions = sessions }
}

// WithEntriesUsecase sets the log entries use case.
func WithEntriesUsecase(entries app.EntriesUsecase) ServerOption {
	return func(s *Server) { s.entries = entries }
}

// WithVerifyUsecase sets the verification use case.
func WithVerifyUsecase(verify app.VerifyUsecase) ServerOption {
	return func(s *Server) { s.verify = verify }
}

// WithReportUsecase sets the report use case.
func WithReportUsecase(report app.ReportUsecase) ServerOption {
	return func(s *Server) { s.report = report }
}

// WithHub sets the SSE hub.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) { s.hub = hub }
}

// WithBasicAuth enables HTTP Basic Auth.
func WithBasicAuth(username, password string) ServerOption {
	return func(s *Server) {
		if username != "" && password != "" {
			s.authEnabled = true
			s.authUsername = username
			s.authPassword = password
			s.authFailures = NewAuthFailureLimiter(DefaultAuthFailureLimiterConfig())
		}
	}
}

// WithStreamSecret sets the HMAC secret for stream tokens.
func WithStreamSecret(secret []byte) ServerOption {
	return func(s *Server) { s.streamSecret = secret }
}

// WithRateLimiter enables IP-based rate limiting.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.rateLimiter = rl }
}

// WithCORS enables CORS for the given origins.
func WithCORS(cfg CORSConfig) ServerOption {
	return func(s *Server) { s.cors = &cfg }
}

// WithCSRFHosts enables Origin/Referer validation on state-changing
// requests for the given hosts (localhost is always allowed).
func WithCSRFHosts(hosts []string) ServerOption {
	return func(s *Server) { s.csrfHosts = hosts }
}

// NewServer creates a new API server with the given dependencies.
func NewServer(addr string, health app.HealthUsecase, opts ...ServerOption) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // SSE connections are long-lived
			IdleTimeout:  60 * time.Second,
		},
		mux:    mux,
		health: health,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()

	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	if s.csrfHosts != nil {
		handler = csrfMiddleware(s.csrfHosts)(handler)
	}
	if s.cors != nil {
		handler = corsMiddleware(*s.cors)(handler)
	}
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(handler)
	}
	s.httpServer.Handler = handler

	return s
}

// wrapAuth wraps a handler with auth middleware if auth is enabled.
func (s *Server) wrapAuth(h http.Handler) http.Handler {
	if !s.authEnabled {
		return h
	}
	h = basicAuthMiddleware(s.authUsername, s.authPassword, s.authFailures)(h)
	return s.authFailures.Middleware(h)
}

// wrapStreamAuth wraps the stream handler: Basic Auth or stream token.
func (s *Server) wrapStreamAuth(h http.Handler) http.Handler {
	if !s.authEnabled {
		return h
	}
	return streamAuthMiddleware(s.authUsername, s.authPassword, s.streamSecret)(h)
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Health endpoint (no auth required)
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	if s.authEnabled && len(s.streamSecret) > 0 {
		s.mux.Handle("POST /api/v1/auth/token", s.wrapAuth(http.HandlerFunc(s.handleAuthToken)))
	}

	if s.ref != nil {
		s.handle("POST /api/v1/clubs", s.handleCreateClub)
		s.handle("GET /api/v1/clubs", s.handleListClubs)
		s.handle("POST /api/v1/clubs/{clubID}/members", s.handleCreateMember)
		s.handle("GET /api/v1/clubs/{clubID}/members", s.handleListMembers)
		s.handle("POST /api/v1/clubs/{clubID}/penalties", s.handleCreatePenalty)
		s.handle("GET /api/v1/clubs/{clubID}/penalties", s.handleListPenalties)
		s.handle("DELETE /api/v1/penalties/{penaltyID}", s.handleRetirePenalty)
	}

	if s.sessions != nil {
		s.handle("POST /api/v1/clubs/{clubID}/sessions", s.handleStartSession)
		s.handle("GET /api/v1/clubs/{clubID}/sessions", s.handleListSessions)
		s.handle("GET /api/v1/sessions/{sessionID}", s.handleGetSession)
		s.handle("POST /api/v1/sessions/{sessionID}/members", s.handleAddSessionMember)
		s.handle("POST /api/v1/sessions/{sessionID}/end", s.handleEndSession)
	}

	if s.entries != nil {
		s.handle("POST /api/v1/sessions/{sessionID}/entries", s.handleAppendEntry)
		s.handle("GET /api/v1/sessions/{sessionID}/entries", s.handleListEntries)
	}

	if s.report != nil {
		s.handle("GET /api/v1/sessions/{sessionID}/tally", s.handleTally)
		s.handle("GET /api/v1/sessions/{sessionID}/balances", s.handleBalances)
	}

	if s.verify != nil {
		s.handle("POST /api/v1/clubs/{clubID}/sessions/{sessionID}/verify", s.handleVerify)
	}

	if s.hub != nil && s.entries != nil {
		s.mux.Handle("GET /api/v1/stream", s.wrapStreamAuth(http.HandlerFunc(s.handleStream)))
	}
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.wrapAuth(h))
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.health.Handle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
