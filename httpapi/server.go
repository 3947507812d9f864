package httpapi

import (
	"net/http"
	"time"

	"github.com/agentcanvas/agentcanvas"
	aclog "github.com/agentcanvas/agentcanvas/log"
	"github.com/agentcanvas/agentcanvas/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// maxBodyBytes caps JSON request bodies. Canvas imports have their own cap.
const maxBodyBytes = 64 << 10

// Options configures a Server.
type Options struct {
	// AllowedOrigins enables CORS with credentials for the listed origins.
	// Empty disables CORS handling.
	AllowedOrigins []string
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Logger  *zap.Logger
}

// Server routes HTTP requests to an Engine.
type Server struct {
	engine  *agentcanvas.Engine
	log     *zap.Logger
	router  *mux.Router
	handler http.Handler

	postLogin  string
	postLogout string
}

// New builds the router. engine must be non-nil.
func New(engine *agentcanvas.Engine, opts Options) *Server {
	logger := aclog.OrNop(opts.Logger)
	cfg := engine.Config()

	s := &Server{
		engine:     engine,
		log:        logger.Named("http"),
		router:     mux.NewRouter(),
		postLogin:  cfg.OAuth.PostLoginRedirect,
		postLogout: cfg.OAuth.PostLogoutRedirect,
	}
	s.routes(cfg.OAuth.CallbackPath, opts.Metrics)

	var h http.Handler = s.router
	if len(opts.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: true,
		}).Handler(h)
	}
	s.handler = middleware.RequestContext(s.logRequests(h))
	return s
}

func (s *Server) routes(callbackPath string, metrics http.Handler) {
	r := s.router
	session := middleware.RequireSession(s.engine)

	r.HandleFunc("/api/auth/login", s.login).Methods(http.MethodGet)
	r.HandleFunc(callbackPath, s.callback).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/refresh", s.refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.logout).Methods(http.MethodPost)
	r.Handle("/api/auth/session", session(http.HandlerFunc(s.session))).Methods(http.MethodGet)
	r.HandleFunc("/.well-known/jwks.json", s.jwks).Methods(http.MethodGet)

	r.Handle("/api/token/info", middleware.RequireIDToken(s.engine)(http.HandlerFunc(s.tokenInfo))).Methods(http.MethodGet)

	orgs := r.PathPrefix("/api/orgs/{orgID}").Subrouter()
	orgs.Use(session, middleware.RequireOrgAdmin(s.engine, orgIDVar))
	orgs.HandleFunc("/members", s.listMembers).Methods(http.MethodGet)
	orgs.HandleFunc("/members", s.addMember).Methods(http.MethodPost)
	orgs.HandleFunc("/members/{membershipID}", s.updateMember).Methods(http.MethodPatch)
	orgs.HandleFunc("/members/{membershipID}", s.removeMember).Methods(http.MethodDelete)

	canvas := r.PathPrefix("/api/canvas").Subrouter()
	canvas.Use(session)
	canvas.HandleFunc("/import", s.importCanvas).Methods(http.MethodPost)
	canvas.HandleFunc("/export", s.exportCanvas).Methods(http.MethodPost)

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(session, middleware.RequireSuperAdmin)
	admin.HandleFunc("/security", s.security).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet, http.MethodHead)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, agentcanvas.ErrNotFound)
	})
}

func orgIDVar(r *http.Request) string {
	return mux.Vars(r)["orgID"]
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Query strings carry OAuth codes; only the path is logged.
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", agentcanvas.RequestIDFromContext(r.Context())),
		}
		if rec.status >= http.StatusInternalServerError {
			s.log.Warn("request", fields...)
			return
		}
		s.log.Debug("request", fields...)
	})
}
