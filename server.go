package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed web/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// maxStatusBody caps the JSON accepted by POST /status.
const maxStatusBody = 128

// shutdownTimeout bounds how long in-flight requests may take on exit.
const shutdownTimeout = 5 * time.Second

// Server serves the status page and the endpoints that change the status.
type Server struct {
	status  *Status
	metrics *Metrics
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer constructs the HTTP server listening on addr.
func NewServer(addr string, status *Status, metrics *Metrics, logger *slog.Logger) *Server {
	s := &Server{status: status, metrics: metrics, logger: logger}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router.  Unknown paths get 404 and known paths with the
// wrong method get 405; neither touches the status.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Get("/", s.handleIndex)
	r.Post("/toggle", s.handleToggle)
	r.Get("/status", s.handleGetStatus)
	r.Post("/status", s.handleSetStatus)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("listening", "addr", s.srv.Addr)
	return serveUntilDone(ctx, s.srv)
}

// serveUntilDone runs srv.ListenAndServe and shuts it down when ctx is done.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server %s shutdown: %w", srv.Addr, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server %s: %w", srv.Addr, err)
	}
	return nil
}

// logRequests logs every request after it completes.  Client errors are
// logged at info, server errors at error.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		}
		switch {
		case status >= 500:
			s.logger.Error("request failed", attrs...)
		case status >= 400:
			s.logger.Info("request rejected", attrs...)
		default:
			s.logger.Debug("request", attrs...)
		}
	})
}

type indexView struct {
	Label     string
	Code      string
	NextLabel string
	NextCode  string
	Requests  uint32
}

// handleIndex renders the page for the current status.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Read()
	view := indexView{
		Label:     snap.Availability.Label(),
		Code:      snap.Availability.Code(),
		NextLabel: snap.Availability.Other().Label(),
		NextCode:  snap.Availability.Other().Code(),
		Requests:  snap.Requests,
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, view); err != nil {
		s.logger.Error("render index", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleToggle flips the status and sends the browser back to the page.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Toggle()
	s.logger.Info("status toggled", "source", "http", "status", snap.Availability.Label(), "requests", snap.Requests)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleGetStatus returns "free" or "dnd".
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.status.Read().Availability.Code()))
}

// handleSetStatus sets the status from {"status":"free"|"dnd"}.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxStatusBody {
		http.Error(w, "Request too big", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxStatusBody)

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "Request too big", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "JSON error", http.StatusBadRequest)
		return
	}
	a, err := ParseAvailability(req.Status)
	if err != nil {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	snap := s.status.Set(a)
	s.logger.Info("status set", "source", "http", "status", snap.Availability.Label(), "requests", snap.Requests)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "Status set to %s", snap.Availability.Label())
}
