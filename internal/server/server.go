// Package server exposes the duplicate checks and the address audit over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/bizdir/internal/audit"
	"github.com/sells-group/bizdir/internal/dedupe"
	"github.com/sells-group/bizdir/internal/directory"
	"github.com/sells-group/bizdir/internal/validate"
)

// Options configures the HTTP surface.
type Options struct {
	Port        int
	RateLimit   float64 // requests per second, 0 disables limiting
	RateBurst   int
	CORSOrigins []string
	// AuditMinSize is used when a request does not pass min_size.
	AuditMinSize int
}

// Server serves the business API.
type Server struct {
	store   directory.Store
	guard   *validate.Guard
	auditor *audit.Auditor
	opts    Options
	log     *zap.Logger
}

// New creates a Server. Writes always use the reject policy.
func New(store directory.Store, guard *validate.Guard, auditor *audit.Auditor, opts Options) *Server {
	if opts.AuditMinSize <= 0 {
		opts.AuditMinSize = 3
	}
	return &Server{
		store:   store,
		guard:   guard.WithPolicy(validate.PolicyReject),
		auditor: auditor,
		opts:    opts,
		log:     zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the chi router with middleware and routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(RateLimit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)))
		}
		r.Post("/businesses/check", s.handleCheck)
		r.Post("/businesses", s.handleCreate)
		r.Get("/businesses/{id}", s.handleGet)
		r.Put("/businesses/{id}", s.handleUpdate)
		r.Get("/audit", s.handleAudit)
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("starting server", zap.Int("port", s.opts.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// RateLimit rejects requests with 429 once the limiter's bucket is empty.
func RateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type issuesResponse struct {
	Issues []dedupe.Issue `json:"issues"`
}

type businessResponse struct {
	Business *directory.Business `json:"business"`
	Issues   []dedupe.Issue      `json:"issues"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var cand dedupe.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	issues, err := s.guard.Issues(r.Context(), cand)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issuesResponse{Issues: issues})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var b directory.Business
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.ID = ""
	s.save(w, r, &b, http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var b directory.Business
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.ID = chi.URLParam(r, "id")
	s.save(w, r, &b, http.StatusOK)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, b *directory.Business, okStatus int) {
	issues, err := s.guard.Save(r.Context(), b)
	var dup *validate.DuplicateError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, issuesResponse{Issues: dup.Issues})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	if issues == nil {
		issues = []dedupe.Issue{}
	}
	writeJSON(w, okStatus, businessResponse{Business: b, Issues: issues})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.store.GetBusiness(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	minSize := s.opts.AuditMinSize
	if v := r.URL.Query().Get("min_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "min_size must be a positive integer")
			return
		}
		minSize = n
	}
	report, err := s.auditor.Run(r.Context(), audit.Options{MinClusterSize: minSize})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// fail maps domain errors onto status codes and logs the rest.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validate.ErrInvalidCandidate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, validate.ErrNotFound):
		writeError(w, http.StatusNotFound, "business not found")
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
