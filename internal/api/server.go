// Package api exposes the catalog over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/auth"
	"github.com/sells-group/places-catalog/internal/mail"
	"github.com/sells-group/places-catalog/internal/model"
	"github.com/sells-group/places-catalog/internal/places"
	"github.com/sells-group/places-catalog/internal/store"
)

// Searcher runs one ingestion request and returns a page of the catalog.
type Searcher interface {
	Run(ctx context.Context, req places.SearchRequest) (*model.PageResult, error)
}

// Catalog is the subset of the store the handlers read and write directly.
type Catalog interface {
	AllBusinesses(ctx context.Context) ([]model.Business, error)
	NearbyBusinesses(ctx context.Context, center model.Location, radiusMeters float64, limit int) ([]model.Business, error)
	CreateBusiness(ctx context.Context, b *model.Business) error
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

var _ Catalog = (store.Store)(nil)

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	search   Searcher
	catalog  Catalog
	tokens   *auth.Tokens
	mailer   Mailer
	appender places.Appender
	log      *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMailer enables POST /email. Without it the route answers 503.
func WithMailer(m Mailer) Option {
	return func(s *Server) { s.mailer = m }
}

// WithAppender mirrors manually created businesses to a.
func WithAppender(a places.Appender) Option {
	return func(s *Server) { s.appender = a }
}

// New creates a Server.
func New(search Searcher, catalog Catalog, tokens *auth.Tokens, opts ...Option) *Server {
	s := &Server{
		search:  search,
		catalog: catalog,
		tokens:  tokens,
		log:     zap.L().With(zap.String("component", "api.server")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/places", s.handleSearch)
	r.Get("/places/nearby", s.handleNearby)
	r.Get("/export", s.handleExport)
	r.Get("/all-data", s.handleAllData)

	r.Post("/users/register", s.handleRegister)
	r.Post("/users/login", s.handleLogin)

	r.With(s.tokens.Middleware).Post("/businesses", s.handleCreateBusiness)
	r.Post("/email", s.handleEmail)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps pipeline errors onto status codes. Internal causes
// are logged and never echoed to the caller.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var verr *places.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	var uerr *places.UpstreamError
	var serr *places.StoreError
	switch {
	case errors.As(err, &uerr):
		s.log.Error("upstream failure", zap.String("op", uerr.Op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch places")
	case errors.As(err, &serr):
		s.log.Error("store failure", zap.String("op", serr.Op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save places")
	default:
		s.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
