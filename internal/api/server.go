package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiter-scout/internal/metrics"
	"github.com/JakeFAU/recruiter-scout/internal/searchkey"
)

// Store is the index surface the server needs.
type Store interface {
	Name() string
	Get(key string) (json.RawMessage, bool)
	Add(key string, value json.RawMessage) (bool, error)
	Len() int
	Keys() []string
}

// Config tunes the HTTP surface.
type Config struct {
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
	// MaxBodyBytes caps capture payloads. Zero means 32 MiB.
	MaxBodyBytes int64
	// RequestTimeout bounds each handler except /save-html, whose write must
	// not outlive a 503 sent to the client. Zero means 60s.
	RequestTimeout time.Duration
}

const (
	defaultMaxBodyBytes   = 32 << 20
	defaultRequestTimeout = 60 * time.Second
)

// Error kinds returned in 4xx/5xx bodies.
const (
	ErrKindInvalidBody     = "invalid_body"
	ErrKindMissingKeywords = "missing_keywords"
	ErrKindInvalidKeywords = "invalid_keywords"
	ErrKindInvalidPage     = "invalid_page"
	ErrKindTooLarge        = "body_too_large"
	ErrKindStorage         = "storage_error"
	ErrKindNotFound        = "not_found"
)

// Server wires HTTP handlers to the indices.
type Server struct {
	router        chi.Router
	searchResults Store
	recruiters    Store
	cfg           Config
	logger        *zap.Logger
}

// NewServer constructs a Server with middleware and routes. recruiters may be nil.
func NewServer(searchResults, recruiters Store, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	metrics.Init()
	s := &Server{
		searchResults: searchResults,
		recruiters:    recruiters,
		cfg:           cfg,
		logger:        logger,
	}
	metrics.SetIndexEntries(searchResults.Name(), searchResults.Len())
	if recruiters != nil {
		metrics.SetIndexEntries(recruiters.Name(), recruiters.Len())
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(metrics.Middleware)

	r.Post("/save-html", s.saveHTML)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))

		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())

		r.Route("/v1", func(r chi.Router) {
			r.Get("/indices", s.indices)
			r.Get("/search-results", s.keysHandler(func() Store { return s.searchResults }))
			r.Get("/search-results/{key}", s.entryHandler(func() Store { return s.searchResults }))
			r.Get("/recruiters", s.keysHandler(func() Store { return s.recruiters }))
			r.Get("/recruiters/{key}", s.entryHandler(func() Store { return s.recruiters }))
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Indices are loaded before the server is built.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) saveHTML(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.ObserveCapture(metrics.CaptureInvalid)
			writeError(w, http.StatusRequestEntityTooLarge, ErrKindTooLarge, err.Error())
			return
		}
		metrics.ObserveCapture(metrics.CaptureInvalid)
		writeError(w, http.StatusBadRequest, ErrKindInvalidBody, "failed to read body")
		return
	}
	if !isJSONObject(body) {
		metrics.ObserveCapture(metrics.CaptureInvalid)
		writeError(w, http.StatusBadRequest, ErrKindInvalidBody, "body must be a JSON object")
		return
	}

	key, err := searchkey.FromJSON(body)
	if err != nil {
		metrics.ObserveCapture(metrics.CaptureInvalid)
		logger.Warn("rejected capture", zap.Error(err))
		writeError(w, http.StatusBadRequest, errorKind(err), err.Error())
		return
	}

	idxKey := key.String()
	added, err := s.searchResults.Add(idxKey, body)
	if err != nil {
		metrics.ObserveCapture(metrics.CaptureError)
		logger.Error("failed to store capture", zap.String("key", idxKey), zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrKindStorage, "failed to store capture")
		return
	}
	if added {
		metrics.ObserveCapture(metrics.CaptureSaved)
		metrics.SetIndexEntries(s.searchResults.Name(), s.searchResults.Len())
		logger.Info("capture saved", zap.String("key", idxKey))
	} else {
		metrics.ObserveCapture(metrics.CaptureDuplicate)
		logger.Info("capture already indexed", zap.String("key", idxKey))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logger.Debug("write ack failed", zap.Error(err))
	}
}

func (s *Server) indices(w http.ResponseWriter, _ *http.Request) {
	out := map[string]int{s.searchResults.Name(): s.searchResults.Len()}
	if s.recruiters != nil {
		out[s.recruiters.Name()] = s.recruiters.Len()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) keysHandler(store func() Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := store()
		if st == nil {
			writeError(w, http.StatusNotFound, ErrKindNotFound, "index not loaded")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"index": st.Name(), "keys": st.Keys()})
	}
}

func (s *Server) entryHandler(store func() Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := store()
		if st == nil {
			writeError(w, http.StatusNotFound, ErrKindNotFound, "index not loaded")
			return
		}
		key := chi.URLParam(r, "key")
		value, ok := st.Get(key)
		if !ok {
			writeError(w, http.StatusNotFound, ErrKindNotFound, fmt.Sprintf("no entry for %q", key))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(value); err != nil {
			s.logger.Debug("write entry failed", zap.Error(err))
		}
	}
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return s.logger.With(zap.String("request_id", id))
	}
	return s.logger
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, searchkey.ErrMissingKeywords):
		return ErrKindMissingKeywords
	case errors.Is(err, searchkey.ErrInvalidKeywords):
		return ErrKindInvalidKeywords
	case errors.Is(err, searchkey.ErrInvalidPage):
		return ErrKindInvalidPage
	default:
		return ErrKindInvalidBody
	}
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.requestLogger(r).Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.requestLogger(r).Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": msg})
}
