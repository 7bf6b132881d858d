// Package server exposes the image endpoint over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagekit/src/config"
	"imagekit/src/imageservice"
	"imagekit/src/observability"
)

// Loader reads source images
type Loader interface {
	Load(ctx context.Context, src string) ([]byte, error)
}

// Server handles image endpoint requests and serves the public directory
type Server struct {
	cfg         *config.Config
	service     *imageservice.Service
	loader      Loader
	transformer imageservice.Transformer
	router      *mux.Router
}

// New creates a server and registers its routes
func New(cfg *config.Config, service *imageservice.Service, loader Loader, transformer imageservice.Transformer) *Server {
	s := &Server{
		cfg:         cfg,
		service:     service,
		loader:      loader,
		transformer: transformer,
		router:      mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(recovery)

	endpoint := s.service.EndpointPath()
	s.router.Handle(endpoint, observability.Middleware(endpoint, http.HandlerFunc(s.handleImage))).
		Methods(http.MethodGet, http.MethodHead)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)

	base := "/" + strings.Trim(s.cfg.Site.Base, "/")
	files := http.FileServer(http.Dir(s.cfg.Site.PublicDir))
	if base != "/" {
		files = http.StripPrefix(base, files)
	}
	s.router.PathPrefix(base).Handler(observability.Middleware("static", files))
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("image server starting", "addr", srv.Addr, "endpoint", s.service.EndpointPath(), "engine", s.service.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("image server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// recovery turns handler panics into 500 responses
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
